package dispatcher

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/event"
)

// Handler runs business logic for one matched invocation. It receives the raw
// provider and builds its own invocation context from it.
type Handler func(ctx context.Context, sp *port.ServiceProvider) error

// Descriptor declares interest in a (stage, entity, message) combination
type Descriptor struct {
	// Stage the handler runs in. Required.
	Stage event.Stage
	// EntityName filters on the primary entity. Empty matches every entity.
	EntityName string
	// MessageName filters on the message. Empty matches every message.
	MessageName string
	// Name identifies the handler in trace output. Defaults to the function name.
	Name string
	// Description is a human summary reported by Registry.Describe.
	Description string
	Handler     Handler
}

// String renders the descriptor as "Stage/Message/Entity Handler: Description"
func (d Descriptor) String() string {
	s := fmt.Sprintf("%s/%s/%s %s", d.Stage, wildcard(d.MessageName), wildcard(d.EntityName), d.HandlerName())
	if desc := strings.TrimSpace(d.Description); desc != "" {
		s += ": " + desc
	}
	return s
}

func wildcard(filter string) string {
	if strings.TrimSpace(filter) == "" {
		return "*"
	}
	return filter
}

// HandlerName returns the diagnostic name of the descriptor's handler
func (d Descriptor) HandlerName() string {
	if d.Name != "" {
		return d.Name
	}
	return funcName(d.Handler)
}

// funcName resolves a function's short name, e.g. "(*PostUpdate).ExecutePluginLogic"
func funcName(h Handler) string {
	if h == nil {
		return "<nil>"
	}
	fn := runtime.FuncForPC(reflect.ValueOf(h).Pointer())
	if fn == nil {
		return "<unknown>"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
