// Package tracing provides the trace sinks the local host hands to extensions.
package tracing

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/record-pipeline/internal/application/port"
)

// ZapTracer writes each trace line as an info entry
type ZapTracer struct {
	logger *zap.Logger
}

// NewZapTracer creates a tracer on top of logger. Extra fields are attached to every line.
func NewZapTracer(logger *zap.Logger, fields ...zap.Field) *ZapTracer {
	return &ZapTracer{logger: logger.With(fields...)}
}

// Trace implements port.TracingService
func (t *ZapTracer) Trace(format string, args ...interface{}) {
	t.logger.Info(fmt.Sprintf(format, args...), zap.String("source", "plugin_trace"))
}

// Recorder keeps trace lines in memory in the order they were written
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Trace implements port.TracingService
func (r *Recorder) Trace(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// Lines returns a copy of the recorded lines
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Multi fans every line out to each sink in order. Nil sinks are skipped.
func Multi(sinks ...port.TracingService) port.TracingService {
	var kept multi
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return kept
}

type multi []port.TracingService

func (m multi) Trace(format string, args ...interface{}) {
	for _, s := range m {
		s.Trace(format, args...)
	}
}

var (
	_ port.TracingService = (*ZapTracer)(nil)
	_ port.TracingService = (*Recorder)(nil)
)
