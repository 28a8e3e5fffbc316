package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"auth-gateway/backend/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if err := em.Emit(context.Background(), &telemetry.Event{Type: "x"}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestNewEventEmitter_SDKProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(nil): %v", err)
	}
	if err := em.Emit(context.Background(), &telemetry.Event{Type: "login_success"}); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

// recordCapture stores the last Record passed to Emit.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func attrs(rec otellog.Record) map[string]string {
	out := map[string]string{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})
	return out
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	event := &telemetry.Event{
		Type:       "registration_confirmed",
		Subject:    "a@x.com",
		Outcome:    "success",
		Source:     "identity",
		Attributes: map[string]string{"ip": "10.0.0.1"},
		Metadata:   []byte(`{"account_id":7}`),
		CreatedAt:  at,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if got := string(rec.Body().AsBytes()); got != `{"account_id":7}` {
		t.Errorf("body = %q", got)
	}
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.EventName() != "registration_confirmed" {
		t.Errorf("event name = %q", rec.EventName())
	}
	want := map[string]string{
		"event_type": "registration_confirmed", "subject": "a@x.com",
		"outcome": "success", "source": "identity", "ip": "10.0.0.1",
	}
	got := attrs(rec)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attr %q = %q, want %q", k, got[k], v)
		}
	}
}

func TestEmit_EmptyMetadataAndZeroTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &telemetry.Event{Type: "ping"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Body().Empty() {
		t.Error("body should be empty when metadata is nil")
	}
	if rec.Timestamp().Before(before) {
		t.Errorf("timestamp %v should default to now", rec.Timestamp())
	}
	if _, ok := attrs(rec)["subject"]; ok {
		t.Error("empty subject should not be set")
	}
}
