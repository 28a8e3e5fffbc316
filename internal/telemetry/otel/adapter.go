package otel

import (
	"context"
	"sort"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"auth-gateway/backend/internal/telemetry"
)

const scopeName = "auth-gateway.security"

// recordEmitter is the part of otellog.Logger the emitter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(scopeName)}
}

// NewEventEmitterWithLogger returns an emitter writing to logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if event.CreatedAt.IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetEventName(event.Type)
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	if event.Type != "" {
		rec.AddAttributes(otellog.String("event_type", event.Type))
	}
	if event.Subject != "" {
		rec.AddAttributes(otellog.String("subject", event.Subject))
	}
	if event.Outcome != "" {
		rec.AddAttributes(otellog.String("outcome", event.Outcome))
	}
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	keys := make([]string, 0, len(event.Attributes))
	for k := range event.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.AddAttributes(otellog.String(k, event.Attributes[k]))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
