// Package store holds pending registrations keyed by email until they are
// confirmed, replaced, or expire.
package store

import (
	"context"
	"errors"
	"time"

	"auth-gateway/backend/internal/registration/domain"
)

var (
	// ErrAbsent is returned when no pending registration exists for the email.
	ErrAbsent = errors.New("pending registration not found")
	// ErrExpired is returned when the pending registration's TTL has passed. The entry is removed.
	ErrExpired = errors.New("pending registration expired")
	// ErrCodeMismatch is returned when the code is wrong. The entry is left intact.
	ErrCodeMismatch = errors.New("one-time code mismatch")
)

// Store is the pending-registration store. Implementations must make
// TakeIfValid an atomic check-and-remove: of any number of concurrent calls
// for the same email and correct code, exactly one succeeds.
type Store interface {
	// Put unconditionally upserts p under p.Email, replacing any prior attempt.
	Put(ctx context.Context, p *domain.PendingRegistration) error
	// Get returns the live entry for email, or ErrAbsent if missing or expired at now.
	Get(ctx context.Context, email string, now time.Time) (*domain.PendingRegistration, error)
	// TakeIfValid removes and returns the payload when code matches before expiry.
	// It returns ErrAbsent, ErrExpired (entry removed) or ErrCodeMismatch (entry kept).
	TakeIfValid(ctx context.Context, email, code string, now time.Time) (domain.Payload, error)
	// Sweep removes every entry expired at now and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
