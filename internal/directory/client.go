// Package directory reaches the external user-directory service. Every call
// resolves to exactly one of Found, NotFound or Unavailable so that business
// absence is never confused with an infrastructure failure.
package directory

import (
	"context"
	"errors"
	"fmt"

	"auth-gateway/backend/internal/directory/domain"
)

// Outcome classifies a directory call.
type Outcome int

const (
	// Unavailable is the zero value so an unset Result never reads as Found.
	Unavailable Outcome = iota
	Found
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

var (
	// ErrUnavailable is the base cause of every Unavailable result.
	ErrUnavailable = errors.New("directory unavailable")
	// ErrConflict is returned inside an Unavailable result when create is
	// rejected because the account already exists.
	ErrConflict = errors.New("directory account conflict")
)

// Result is the three-way outcome of a directory call. Account is set only
// for Found; Err only for Unavailable.
type Result struct {
	Outcome Outcome
	Account *domain.Account
	Err     error
}

// FoundResult returns a Found result for a.
func FoundResult(a *domain.Account) Result { return Result{Outcome: Found, Account: a} }

// NotFoundResult returns a NotFound result.
func NotFoundResult() Result { return Result{Outcome: NotFound} }

// UnavailableResult returns an Unavailable result whose Err wraps
// ErrUnavailable and cause.
func UnavailableResult(cause error) Result {
	if cause == nil {
		return Result{Outcome: Unavailable, Err: ErrUnavailable}
	}
	if errors.Is(cause, ErrUnavailable) {
		return Result{Outcome: Unavailable, Err: cause}
	}
	return Result{Outcome: Unavailable, Err: fmt.Errorf("%w: %w", ErrUnavailable, cause)}
}

// Client is the RemoteDirectoryClient consumed by the registration coordinator.
// Create never yields NotFound.
type Client interface {
	ByEmail(ctx context.Context, email string) Result
	ByUsername(ctx context.Context, username string) Result
	Create(ctx context.Context, req domain.CreateRequest) Result
}
