package host

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/record-pipeline/internal/application/dispatcher"
	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/internal/infrastructure/tracing"
)

// Result is what one hosted invocation produced
type Result struct {
	CorrelationID string
	// Target is the in-flight record after every extension ran
	Target *entity.Record
	Trace  []string
	Err    error
}

// OK reports whether every extension succeeded
func (r *Result) OK() bool {
	return r.Err == nil
}

// Host calls its extensions for each invocation, in the order they were added
type Host struct {
	extensions []dispatcher.Extension
	factory    port.ServiceFactory
	logger     *zap.Logger
}

// New creates a host serving records from factory
func New(factory port.ServiceFactory, logger *zap.Logger, extensions ...dispatcher.Extension) (*Host, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: service factory", port.ErrMissingService)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		extensions: extensions,
		factory:    factory,
		logger:     logger,
	}, nil
}

// Extensions returns the names of the hosted extensions
func (h *Host) Extensions() []string {
	names := make([]string, len(h.extensions))
	for i, e := range h.extensions {
		names[i] = e.Name()
	}
	return names
}

// Invoke runs every extension against the invocation. The first extension
// error stops the run; later extensions are not called.
func (h *Host) Invoke(ctx context.Context, inv *Invocation) *Result {
	exec, err := inv.Execution()
	if err != nil {
		return &Result{Err: err}
	}

	recorder := tracing.NewRecorder()
	sp := &port.ServiceProvider{
		Tracing: tracing.Multi(recorder, tracing.NewZapTracer(h.logger,
			zap.String("correlation_id", exec.CorrelationID))),
		Execution: exec,
		Factory:   h.factory,
	}

	result := &Result{CorrelationID: exec.CorrelationID, Target: inv.Target}
	for _, ext := range h.extensions {
		if err := ext.Execute(ctx, sp); err != nil {
			result.Err = err
			h.logger.Error("Extension failed",
				zap.String("extension", ext.Name()),
				zap.String("correlation_id", exec.CorrelationID),
				zap.String("stage", exec.Stage.String()),
				zap.String("message", exec.MessageName),
				zap.String("entity", exec.PrimaryEntityName),
				zap.Error(err))
			break
		}
	}
	result.Trace = recorder.Lines()

	h.logger.Info("Invocation completed",
		zap.String("correlation_id", exec.CorrelationID),
		zap.Bool("ok", result.OK()),
		zap.Int("trace_lines", len(result.Trace)))
	return result
}

// IsInvalid reports whether err comes from a malformed invocation or a
// misconfigured provider rather than from a handler
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInvocation) ||
		errors.Is(err, port.ErrMissingService) ||
		errors.Is(err, port.ErrMissingServiceProvider)
}
