package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/event"
)

const instrumentationName = "github.com/garyjia/record-pipeline/internal/application/dispatcher"

// Extension is the entry point the platform calls once per registered step
type Extension interface {
	// Name identifies the extension in trace output
	Name() string

	// Execute matches the invocation against the registry and runs every
	// matching handler in registration order. The first handler error stops
	// the loop and is returned unchanged.
	Execute(ctx context.Context, sp *port.ServiceProvider) error
}

// Config holds the two configuration strings supplied at step registration.
// The dispatcher passes them through without interpreting them.
type Config struct {
	UnsecureConfig string
	SecureConfig   string
}

// Plugin is the extension instance the platform holds and reuses across
// invocations, possibly concurrently. It owns nothing but immutable data.
type Plugin struct {
	name     string
	config   Config
	registry *Registry
	tracer   trace.Tracer
}

// Option configures the plugin
type Option func(*Plugin)

// WithTracerProvider sets the OpenTelemetry provider used for spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Plugin) {
		p.tracer = tp.Tracer(instrumentationName)
	}
}

// NewPlugin creates an extension instance with a registry built from descriptors
func NewPlugin(name string, cfg Config, descriptors []Descriptor, opts ...Option) (*Plugin, error) {
	registry, err := NewRegistry(descriptors...)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", name, err)
	}

	p := &Plugin{
		name:     name,
		config:   cfg,
		registry: registry,
		tracer:   otel.GetTracerProvider().Tracer(instrumentationName),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Name returns the extension name
func (p *Plugin) Name() string {
	return p.name
}

// UnsecureConfig returns the unsecure registration configuration
func (p *Plugin) UnsecureConfig() string {
	return p.config.UnsecureConfig
}

// SecureConfig returns the secure registration configuration
func (p *Plugin) SecureConfig() string {
	return p.config.SecureConfig
}

// Registry returns the plugin's descriptor registry
func (p *Plugin) Registry() *Registry {
	return p.registry
}

// Execute implements Extension
func (p *Plugin) Execute(ctx context.Context, sp *port.ServiceProvider) error {
	if sp == nil {
		return port.ErrMissingServiceProvider
	}
	exec := sp.Execution
	if exec == nil {
		return fmt.Errorf("%w: execution context", port.ErrMissingService)
	}
	tracing := sp.TracerOrNop()

	ctx, span := p.tracer.Start(ctx, p.name+".Execute", trace.WithAttributes(executionAttributes(exec)...))
	defer span.End()

	tracing.Trace("Entered %s.Execute()", p.name)
	defer tracing.Trace("Exiting %s.Execute()", p.name)

	for _, d := range p.registry.Match(exec) {
		tracing.Trace("%s is firing for Entity: %s, Message: %s, Method: %s",
			p.name, exec.PrimaryEntityName, exec.MessageName, d.HandlerName())

		if err := p.safeExecute(ctx, sp, d); err != nil {
			tracing.Trace("Exception: %+v", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	return nil
}

// PanicError is returned when a handler panics
type PanicError struct {
	Handler string
	Value   interface{}
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s panic: %v", e.Handler, e.Value)
}

// Format prints the stack with %+v
func (e *PanicError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s\n%s", e.Error(), e.Stack)
		return
	}
	fmt.Fprint(s, e.Error())
}

// safeExecute runs a handler with panic recovery inside its own span
func (p *Plugin) safeExecute(ctx context.Context, sp *port.ServiceProvider, d Descriptor) (err error) {
	name := d.HandlerName()
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Handler: name, Value: r, Stack: debug.Stack()}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return d.Handler(ctx, sp)
}

func executionAttributes(exec *event.ExecutionContext) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("pipeline.stage", exec.Stage.String()),
		attribute.String("pipeline.message", exec.MessageName),
		attribute.String("pipeline.entity", exec.PrimaryEntityName),
		attribute.Int("pipeline.depth", exec.Depth),
		attribute.String("pipeline.correlation_id", exec.CorrelationID),
	}
}
