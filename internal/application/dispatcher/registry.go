package dispatcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/record-pipeline/internal/domain/event"
)

// ErrInvalidDescriptor is returned when a descriptor cannot be registered
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// Builder collects descriptors in registration order
type Builder struct {
	descriptors []Descriptor
	errs        []error
}

// NewBuilder creates an empty registry builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Register appends a descriptor. Validation errors are reported by Build.
func (b *Builder) Register(d Descriptor) *Builder {
	if err := validateDescriptor(d); err != nil {
		b.errs = append(b.errs, fmt.Errorf("descriptor %d: %w", len(b.descriptors)+len(b.errs), err))
		return b
	}
	b.descriptors = append(b.descriptors, d)
	return b
}

// Build returns a read-only registry holding a private copy of the descriptors
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	descriptors := make([]Descriptor, len(b.descriptors))
	copy(descriptors, b.descriptors)
	return &Registry{descriptors: descriptors}, nil
}

// NewRegistry builds a registry from descriptors in the given order
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	b := NewBuilder()
	for _, d := range descriptors {
		b.Register(d)
	}
	return b.Build()
}

func validateDescriptor(d Descriptor) error {
	if !d.Stage.IsValid() {
		return fmt.Errorf("%w: unknown stage %d", ErrInvalidDescriptor, int(d.Stage))
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: handler is required", ErrInvalidDescriptor)
	}
	return nil
}

// Registry is an ordered, immutable set of descriptors. It is safe for
// concurrent use because nothing mutates it after Build.
type Registry struct {
	descriptors []Descriptor
}

// Match returns every descriptor interested in the invocation, in registration order
func (r *Registry) Match(exec *event.ExecutionContext) []Descriptor {
	if r == nil || exec == nil {
		return nil
	}
	var matches []Descriptor
	for _, d := range r.descriptors {
		if d.matches(exec) {
			matches = append(matches, d)
		}
	}
	return matches
}

// Len returns the number of registered descriptors
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.descriptors)
}

// Descriptors returns a copy of the registered descriptors
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	result := make([]Descriptor, len(r.descriptors))
	copy(result, r.descriptors)
	return result
}

// Describe returns one line per descriptor in registration order
func (r *Registry) Describe() []string {
	if r == nil {
		return nil
	}
	lines := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		lines[i] = d.String()
	}
	return lines
}

func (d Descriptor) matches(exec *event.ExecutionContext) bool {
	return d.Stage == exec.Stage &&
		filterMatches(d.MessageName, exec.MessageName) &&
		filterMatches(d.EntityName, exec.PrimaryEntityName)
}

// filterMatches treats a blank filter as a wildcard; names compare case-insensitively
func filterMatches(filter, value string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	return strings.EqualFold(filter, value)
}
