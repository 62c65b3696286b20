package leave

import (
	"context"
	"fmt"

	"github.com/garyjia/record-pipeline/internal/application/dispatcher"
	"github.com/garyjia/record-pipeline/internal/application/pipeline"
	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/internal/domain/event"
	"github.com/garyjia/record-pipeline/internal/domain/workflow"
)

// ValidationPluginName identifies the status check in trace output
const ValidationPluginName = "LeavePreValidation"

// statusSnapshot is the part of a stored leave request the status check needs
type statusSnapshot struct {
	Status string  `mapstructure:"new_leavestatus"`
	Days   float64 `mapstructure:"new_numberofdays"`
}

// PreValidation rejects leave request updates that skip the status lifecycle
type PreValidation struct {
	*dispatcher.Plugin
}

// NewPreValidation creates the status check and registers it before validation of updates
func NewPreValidation(opts ...dispatcher.Option) (*PreValidation, error) {
	p := &PreValidation{}
	plugin, err := dispatcher.NewPlugin(ValidationPluginName, dispatcher.Config{},
		[]dispatcher.Descriptor{
			{
				Stage:       event.StagePreValidation,
				MessageName: event.MessageUpdate,
				EntityName:  entity.LeaveRequestEntity,
				Description: "Reject leave status changes the lifecycle does not permit",
				Handler:     p.ValidateStatusChange,
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

// ValidateStatusChange checks the status carried by the target against the stored one
func (p *PreValidation) ValidateStatusChange(ctx context.Context, sp *port.ServiceProvider) (err error) {
	pc, err := pipeline.NewContext(ctx, sp)
	if err != nil {
		return err
	}
	defer release(pc, ValidationPluginName, &err)

	target := pc.Target()
	if target == nil || !target.Contains(entity.AttrLeaveStatus) {
		return nil
	}

	current, err := p.currentStatus(ctx, pc, target.ID)
	if err != nil {
		return err
	}

	from := workflow.State(current.Status)
	if from == "" {
		from = workflow.StateDraft
	}
	to := workflow.State(target.GetString(entity.AttrLeaveStatus))
	if from == to {
		return nil
	}
	if !from.IsValid() {
		return fmt.Errorf("%w: stored status %q", workflow.ErrInvalidState, from)
	}

	days := current.Days
	if target.Contains(entity.AttrNumberOfDays) {
		days = target.GetFloat(entity.AttrNumberOfDays)
	}

	m := workflow.LeaveLifecycle(days).Build(from)
	if err := workflow.Transition(ctx, m, to); err != nil {
		return fmt.Errorf("leave request %s: %w", target.ID, err)
	}

	pc.Trace("%s: request %s moves %s -> %s", ValidationPluginName, target.ID, from, to)
	return nil
}

// currentStatus prefers the registered pre-image and falls back to a read
func (p *PreValidation) currentStatus(ctx context.Context, pc *pipeline.Context, id string) (statusSnapshot, error) {
	snap, ok, err := pipeline.PreImageAs[statusSnapshot](pc)
	if err != nil || ok {
		return snap, err
	}

	stored, err := pc.Session().Retrieve(ctx, entity.LeaveRequestEntity, id,
		entity.Columns(entity.AttrLeaveStatus, entity.AttrNumberOfDays))
	if err != nil {
		return snap, err
	}
	return pipeline.Project[statusSnapshot](stored)
}
