package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/event"
)

func noop(ctx context.Context, sp *port.ServiceProvider) error { return nil }

func exec(stage event.Stage, entityName, message string) *event.ExecutionContext {
	return &event.ExecutionContext{
		Stage:             stage,
		PrimaryEntityName: entityName,
		MessageName:       message,
	}
}

func names(ds []Descriptor) []string {
	result := make([]string, len(ds))
	for i, d := range ds {
		result[i] = d.Name
	}
	return result
}

func TestRegistry_Match(t *testing.T) {
	registry, err := NewRegistry(
		Descriptor{Name: "post-update-leave", Stage: event.StagePostOperation, EntityName: "leaverequest", MessageName: "Update", Handler: noop},
		Descriptor{Name: "post-any", Stage: event.StagePostOperation, Handler: noop},
		Descriptor{Name: "pre-update-leave", Stage: event.StagePreOperation, EntityName: "leaverequest", MessageName: "Update", Handler: noop},
		Descriptor{Name: "post-create-any-entity", Stage: event.StagePostOperation, MessageName: "Create", Handler: noop},
		Descriptor{Name: "post-account-any-message", Stage: event.StagePostOperation, EntityName: "account", Handler: noop},
		Descriptor{Name: "post-blank-filters", Stage: event.StagePostOperation, EntityName: "  ", MessageName: "\t", Handler: noop},
	)
	require.NoError(t, err)

	tests := []struct {
		name string
		exec *event.ExecutionContext
		want []string
	}{
		{
			name: "exact stage entity and message",
			exec: exec(event.StagePostOperation, "leaverequest", "Update"),
			want: []string{"post-update-leave", "post-any", "post-blank-filters"},
		},
		{
			name: "message compares case-insensitively",
			exec: exec(event.StagePostOperation, "leaverequest", "UPDATE"),
			want: []string{"post-update-leave", "post-any", "post-blank-filters"},
		},
		{
			name: "entity compares case-insensitively",
			exec: exec(event.StagePostOperation, "LeaveRequest", "update"),
			want: []string{"post-update-leave", "post-any", "post-blank-filters"},
		},
		{
			name: "different message",
			exec: exec(event.StagePostOperation, "leaverequest", "Create"),
			want: []string{"post-any", "post-create-any-entity", "post-blank-filters"},
		},
		{
			name: "stage must match exactly",
			exec: exec(event.StagePreValidation, "leaverequest", "Update"),
			want: nil,
		},
		{
			name: "pre operation",
			exec: exec(event.StagePreOperation, "leaverequest", "Update"),
			want: []string{"pre-update-leave"},
		},
		{
			name: "entity filter only",
			exec: exec(event.StagePostOperation, "Account", "Delete"),
			want: []string{"post-any", "post-account-any-message", "post-blank-filters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.Match(tt.exec)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestRegistry_MatchScenarioA(t *testing.T) {
	registry, err := NewRegistry(Descriptor{
		Name:        "H",
		Stage:       event.StagePostOperation,
		EntityName:  "leaverequest",
		MessageName: "Update",
		Handler:     noop,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"H"}, names(registry.Match(exec(event.StagePostOperation, "leaverequest", "Update"))))
	assert.Empty(t, registry.Match(exec(event.StagePostOperation, "leaverequest", "Create")))
}

func TestRegistry_MatchNil(t *testing.T) {
	var registry *Registry
	assert.Empty(t, registry.Match(exec(event.StagePostOperation, "a", "b")))
	assert.Zero(t, registry.Len())

	registry, err := NewRegistry(Descriptor{Stage: event.StagePostOperation, Handler: noop})
	require.NoError(t, err)
	assert.Empty(t, registry.Match(nil))
}

func TestBuilder_Build(t *testing.T) {
	t.Run("registry is isolated from later registrations", func(t *testing.T) {
		b := NewBuilder().Register(Descriptor{Name: "first", Stage: event.StagePreOperation, Handler: noop})
		registry, err := b.Build()
		require.NoError(t, err)

		b.Register(Descriptor{Name: "second", Stage: event.StagePreOperation, Handler: noop})

		assert.Equal(t, 1, registry.Len())
		assert.Equal(t, []string{"first"}, names(registry.Descriptors()))
	})

	t.Run("descriptors returns a copy", func(t *testing.T) {
		registry, err := NewRegistry(Descriptor{Name: "only", Stage: event.StagePreOperation, Handler: noop})
		require.NoError(t, err)

		ds := registry.Descriptors()
		ds[0].Name = "mutated"

		assert.Equal(t, "only", registry.Descriptors()[0].Name)
	})

	t.Run("rejects unknown stage", func(t *testing.T) {
		_, err := NewRegistry(Descriptor{Stage: event.Stage(30), Handler: noop})
		assert.True(t, errors.Is(err, ErrInvalidDescriptor))
	})

	t.Run("rejects nil handler", func(t *testing.T) {
		_, err := NewRegistry(Descriptor{Stage: event.StagePostOperation})
		assert.True(t, errors.Is(err, ErrInvalidDescriptor))
	})
}

func TestDescriptor_HandlerName(t *testing.T) {
	assert.Equal(t, "custom", Descriptor{Name: "custom", Handler: noop}.HandlerName())
	assert.Equal(t, "noop", Descriptor{Handler: noop}.HandlerName())
	assert.Equal(t, "<nil>", Descriptor{}.HandlerName())
}

func TestRegistry_Describe(t *testing.T) {
	registry, err := NewRegistry(
		Descriptor{Name: "adjust", Stage: event.StagePostOperation, MessageName: "Update", EntityName: "new_leaverequests", Description: "Decrement balance", Handler: noop},
		Descriptor{Name: "audit", Stage: event.StagePreValidation, EntityName: "  ", Handler: noop},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"PostOperation/Update/new_leaverequests adjust: Decrement balance",
		"PreValidation/*/* audit",
	}, registry.Describe())

	var empty *Registry
	assert.Nil(t, empty.Describe())
}
