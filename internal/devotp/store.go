// Package devotp exposes the latest registration code per email so that local
// environments without a mail server can complete confirm-registration
// (GET /dev/registration/otp). It is never wired in production.
package devotp

import (
	"context"
	"sync"
	"time"

	"auth-gateway/backend/internal/registration/domain"
)

// Store holds plain registration codes by email for dev-only retrieval.
type Store interface {
	// Put records code for email until expiresAt, replacing any earlier code.
	Put(ctx context.Context, email, code string, expiresAt time.Time)
	// Get returns the code for email while its registration is still pending.
	Get(ctx context.Context, email string) (code string, ok bool)
}

type issuedCode struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is a Store keyed like the pending registration store, so
// " A@X.com" and "a@x.com" address the same code. Codes follow the pending
// expiry rule: usable strictly before expiresAt.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]issuedCode
	nowF  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes: map[string]issuedCode{},
		nowF:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(_ context.Context, email, code string, expiresAt time.Time) {
	s.mu.Lock()
	s.codes[domain.NormalizeEmail(email)] = issuedCode{code: code, expiresAt: expiresAt}
	s.mu.Unlock()
}

// Get drops the code once it has expired.
func (s *MemoryStore) Get(_ context.Context, email string) (string, bool) {
	k := domain.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[k]
	if !ok {
		return "", false
	}
	if !s.nowF().Before(c.expiresAt) {
		delete(s.codes, k)
		return "", false
	}
	return c.code, true
}

// Len returns the number of retained codes, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
