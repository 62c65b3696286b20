// Package pipeline provides the per-invocation context handlers work through.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/internal/domain/event"
)

// Context is the short-lived view of one invocation. It is created by a
// handler, used by that handler only, and closed before the handler returns.
type Context struct {
	tracing   port.TracingService
	execution *event.ExecutionContext
	factory   port.ServiceFactory
	records   port.RecordService
	session   port.Session

	closeOnce sync.Once
	closeErr  error
}

// NewContext resolves the platform services and opens the session for the acting principal
func NewContext(ctx context.Context, sp *port.ServiceProvider) (*Context, error) {
	if sp == nil {
		return nil, port.ErrMissingServiceProvider
	}
	if sp.Execution == nil {
		return nil, fmt.Errorf("%w: execution context", port.ErrMissingService)
	}
	if sp.Factory == nil {
		return nil, fmt.Errorf("%w: service factory", port.ErrMissingService)
	}

	pc := &Context{
		tracing:   sp.Tracing,
		execution: sp.Execution,
		factory:   sp.Factory,
	}

	pc.records = sp.Factory.CreateRecordService(sp.Execution.UserID)
	if pc.records == nil {
		return nil, fmt.Errorf("%w: record service", port.ErrMissingService)
	}

	session, err := sp.Factory.OpenSession(ctx, sp.Execution.UserID)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	pc.session = session

	return pc, nil
}

// Close releases the session. Safe to call more than once.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		if c.session != nil {
			c.closeErr = c.session.Close()
		}
	})
	return c.closeErr
}

// Execution returns the invocation descriptor
func (c *Context) Execution() *event.ExecutionContext { return c.execution }

// Stage returns the pipeline stage of the invocation
func (c *Context) Stage() event.Stage { return c.execution.Stage }

// Depth returns the platform's nesting depth for the invocation
func (c *Context) Depth() int { return c.execution.Depth }

// MessageName returns the message being processed
func (c *Context) MessageName() string { return c.execution.MessageName }

// PrimaryEntityName returns the logical name of the entity being processed
func (c *Context) PrimaryEntityName() string { return c.execution.PrimaryEntityName }

// RecordService returns the record service acting for the invocation's user
func (c *Context) RecordService() port.RecordService { return c.records }

// Session returns the scoped session owned by this context
func (c *Context) Session() port.Session { return c.session }

// Factory returns the platform's service factory
func (c *Context) Factory() port.ServiceFactory { return c.factory }

// Tracer returns the raw trace sink, which may be nil
func (c *Context) Tracer() port.TracingService { return c.tracing }

// Trace writes a line tagged with the correlation id and the initiating user
func (c *Context) Trace(format string, args ...interface{}) {
	if c.tracing == nil {
		return
	}
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	if strings.TrimSpace(message) == "" {
		return
	}
	c.tracing.Trace("%s, Correlation Id: %s, Initiating User: %s",
		message, c.execution.CorrelationID, c.execution.InitiatingUserID)
}

// Target returns the in-flight record of the message. The same pointer is
// returned on every call so edits made in a pre stage reach the platform.
func (c *Context) Target() *entity.Record {
	if target, ok := c.execution.InputParameters[event.ParamTarget].(*entity.Record); ok {
		return target
	}
	return nil
}

// TargetReference returns the target when the message carries only its identity
func (c *Context) TargetReference() *entity.Reference {
	if ref, ok := c.execution.InputParameters[event.ParamTarget].(*entity.Reference); ok {
		return ref
	}
	return nil
}

// PreImage returns the first registered pre image, or nil
func (c *Context) PreImage() *entity.Record {
	return c.execution.PreEntityImages.First()
}

// PostImage returns the first registered post image, or nil
func (c *Context) PostImage() *entity.Record {
	return c.execution.PostEntityImages.First()
}

