package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil; EmitAsync then returns without starting a goroutine.
// The goroutine uses context.Background() so request cancellation does not abort in-flight emits.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *Event, logger *slog.Logger) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil && logger != nil {
			logger.Warn("telemetry: async emit failed", "event_type", event.Type, "error", err)
		}
	}()
}
