// Package notify delivers registration one-time codes to the address being
// registered. The coordinator depends only on Notifier; the transport is
// picked by NOTIFY_MODE.
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by a notifier missing required settings.
var ErrNotConfigured = errors.New("notify: not configured")

// Notifier sends a registration code to email. expiresAt is the pending
// registration's expiry. Implementations must not log the code.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error
}

// Dispatch is the queued form of a code delivery (Kafka message value).
type Dispatch struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the code can no longer be confirmed at now.
func (d Dispatch) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, email, code string, expiresAt time.Time) error

// SendOTP calls f.
func (f NotifierFunc) SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	return f(ctx, email, code, expiresAt)
}
