package domain

import (
	"strings"
	"time"
)

// DefaultTTL is how long a pending registration can be confirmed.
const DefaultTTL = 300 * time.Second

// Payload is the full registration request as submitted. Password is
// plaintext until confirmation hashes it.
type Payload struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// Normalize trims whitespace and lowercases the email, which is the pending-store key.
func (p Payload) Normalize() Payload {
	p.Email = NormalizeEmail(p.Email)
	p.Username = strings.TrimSpace(p.Username)
	p.FullName = strings.TrimSpace(p.FullName)
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	return p
}

// NormalizeEmail returns the canonical form of an email key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PendingRegistration is an in-flight registration awaiting its one-time code.
// At most one exists per email; a newer one replaces the older.
type PendingRegistration struct {
	Email     string
	Payload   Payload
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewPending builds a PendingRegistration for p created at now and valid for ttl.
func NewPending(p Payload, code string, now time.Time, ttl time.Duration) *PendingRegistration {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PendingRegistration{
		Email:     p.Email,
		Payload:   p,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the entry can no longer be confirmed at now.
// The entry is valid strictly before ExpiresAt.
func (p *PendingRegistration) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
