// Package telemetry carries security events (registrations, logins, directory
// outages) to the observability backend.
package telemetry

import (
	"context"
	"time"
)

// Event is one security-relevant occurrence. Subject is the email or
// username involved; codes and passwords never appear in an Event.
type Event struct {
	Type       string
	Subject    string
	Outcome    string
	Source     string
	Attributes map[string]string
	Metadata   []byte
	CreatedAt  time.Time
}

// EventEmitter emits events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
