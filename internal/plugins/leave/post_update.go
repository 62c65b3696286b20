// Package leave hosts the extension that keeps leave balances in step with
// approved leave requests.
package leave

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/garyjia/record-pipeline/internal/application/dispatcher"
	"github.com/garyjia/record-pipeline/internal/application/pipeline"
	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/application/service"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/internal/domain/event"
)

// PluginName identifies the extension in trace output
const PluginName = "LeavePostUpdate"

// Settings is the extension's view of its unsecure step configuration
type Settings struct {
	StrictBalanceLookup bool `mapstructure:"strict_balance_lookup"`
}

// ParseSettings reads YAML or JSON settings. Blank configuration yields defaults.
func ParseSettings(raw string) (Settings, error) {
	var s Settings
	if strings.TrimSpace(raw) == "" {
		return s, nil
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("strict_balance_lookup", false)
	if err := v.ReadConfig(bytes.NewBufferString(raw)); err != nil {
		return s, fmt.Errorf("failed to read %s configuration: %w", PluginName, err)
	}
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("failed to unmarshal %s configuration: %w", PluginName, err)
	}
	return s, nil
}

// PostUpdate runs after a leave request update is committed
type PostUpdate struct {
	*dispatcher.Plugin
	settings Settings
}

// NewPostUpdate creates the extension and registers its interest in leave request updates
func NewPostUpdate(unsecureConfig, secureConfig string, opts ...dispatcher.Option) (*PostUpdate, error) {
	settings, err := ParseSettings(unsecureConfig)
	if err != nil {
		return nil, err
	}

	p := &PostUpdate{settings: settings}
	plugin, err := dispatcher.NewPlugin(PluginName,
		dispatcher.Config{UnsecureConfig: unsecureConfig, SecureConfig: secureConfig},
		[]dispatcher.Descriptor{
			{
				Stage:       event.StagePostOperation,
				MessageName: event.MessageUpdate,
				EntityName:  entity.LeaveRequestEntity,
				Description: "Decrement the requester's leave balance once a request is approved",
				Handler:     p.ExecutePluginLogic,
			},
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	p.Plugin = plugin
	return p, nil
}

// Settings returns the parsed configuration
func (p *PostUpdate) Settings() Settings {
	return p.settings
}

// ExecutePluginLogic applies the balance rule to the update's target
func (p *PostUpdate) ExecutePluginLogic(ctx context.Context, sp *port.ServiceProvider) (err error) {
	pc, err := pipeline.NewContext(ctx, sp)
	if err != nil {
		return err
	}
	defer release(pc, PluginName, &err)

	target := pc.Target()
	if target == nil {
		if ref := pc.TargetReference(); ref != nil {
			target = entity.NewRecord(ref.LogicalName, ref.ID)
		}
	}
	if target == nil {
		pc.Trace("%s: no target on %s message, nothing to do", PluginName, pc.MessageName())
		return nil
	}

	// the session keeps the read and the balance write on one connection
	svc := service.NewLeaveService(pc.Session(),
		service.LeaveOptions{StrictBalanceLookup: p.settings.StrictBalanceLookup},
		traceLogger{pc: pc},
	)
	result, err := svc.UpdateApprovedLeave(ctx, target)
	if err != nil {
		return err
	}

	pc.Trace("%s: request %s outcome %s", PluginName, result.RequestID, result.Outcome)
	return nil
}

// release closes the invocation session. A close failure is traced and
// returned unless the handler already failed.
func release(pc *pipeline.Context, plugin string, err *error) {
	cerr := pc.Close()
	if cerr == nil {
		return
	}
	pc.Trace("%s: failed to release session: %v", plugin, cerr)
	if *err == nil {
		*err = cerr
	}
}

// traceLogger writes service log lines to the platform trace of the invocation
type traceLogger struct {
	pc *pipeline.Context
}

func (l traceLogger) Info(msg string, keysAndValues ...interface{}) {
	l.pc.Trace("%s", formatLine(msg, keysAndValues))
}

func (l traceLogger) Error(msg string, keysAndValues ...interface{}) {
	l.pc.Trace("%s", formatLine("ERROR "+msg, keysAndValues))
}

func formatLine(msg string, keysAndValues []interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return b.String()
}
