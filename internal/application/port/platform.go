package port

import (
	"errors"

	"github.com/garyjia/record-pipeline/internal/domain/event"
)

var (
	// ErrMissingServiceProvider is returned when the platform calls in without a provider
	ErrMissingServiceProvider = errors.New("service provider is required")

	// ErrMissingService is returned when the provider lacks a required service
	ErrMissingService = errors.New("required platform service is missing")

	// ErrRecordNotFound is returned by record services for unknown ids
	ErrRecordNotFound = errors.New("record not found")
)

// TracingService is the platform's line-oriented diagnostic sink
type TracingService interface {
	Trace(format string, args ...interface{})
}

// ServiceProvider bundles the typed services the platform supplies for one call
type ServiceProvider struct {
	Tracing   TracingService
	Execution *event.ExecutionContext
	Factory   ServiceFactory
}

// NopTracer discards every trace line
type NopTracer struct{}

// Trace implements TracingService
func (NopTracer) Trace(string, ...interface{}) {}

// TracerOrNop returns the provider's tracing service, or a discarding one when unset
func (p *ServiceProvider) TracerOrNop() TracingService {
	if p == nil || p.Tracing == nil {
		return NopTracer{}
	}
	return p.Tracing
}
