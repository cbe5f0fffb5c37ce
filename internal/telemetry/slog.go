// Package telemetry implements the C-external Telemetry port (spec §6):
// emitting named spans with attributes, with no semantic effect on the
// core. The spec treats telemetry sinks as out of scope collaborators,
// so this adapter stays as simple as the port itself — one structured
// log line per Emit, using the module's own logger (pkg/logger).
package telemetry

import (
	"context"
	"log/slog"

	"github.com/weldcfg/configurator/internal/core"
)

// SlogEmitter implements core.Telemetry by writing one structured log
// record per span. It is the default emitter; a deployment that wants a
// real tracing backend swaps this for an adapter behind the same port.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter builds an emitter over logger.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// Emit implements core.Telemetry.
func (e *SlogEmitter) Emit(ctx context.Context, spanName string, attrs map[string]string) {
	args := make([]any, 0, len(attrs)*2+2)
	args = append(args, "span", spanName)
	for k, v := range attrs {
		args = append(args, k, v)
	}
	e.logger.InfoContext(ctx, "telemetry span", args...)
}

var _ core.Telemetry = (*SlogEmitter)(nil)
