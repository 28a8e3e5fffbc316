package store

import (
	"context"
	"sync"
	"time"

	"auth-gateway/backend/internal/otp"
	"auth-gateway/backend/internal/registration/domain"
)

// MemoryStore is an in-process Store. The mutex covers map access only;
// callers never hold it across network calls.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]domain.PendingRegistration
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]domain.PendingRegistration)}
}

// Put stores a copy of p, replacing any prior entry for the same email.
func (s *MemoryStore) Put(ctx context.Context, p *domain.PendingRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[p.Email] = *p
	return nil
}

// Get returns a copy of the live entry. An expired entry is removed, unless it
// was replaced between the read and the removal.
func (s *MemoryStore) Get(ctx context.Context, email string, now time.Time) (*domain.PendingRegistration, error) {
	s.mu.RLock()
	e, ok := s.m[email]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrAbsent
	}
	if e.Expired(now) {
		s.mu.Lock()
		if cur, ok := s.m[email]; ok && cur.Expired(now) {
			delete(s.m, email)
		}
		s.mu.Unlock()
		return nil, ErrAbsent
	}
	return &e, nil
}

// TakeIfValid inspects and, on success or expiry, removes the entry under one lock.
func (s *MemoryStore) TakeIfValid(ctx context.Context, email, code string, now time.Time) (domain.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[email]
	if !ok {
		return domain.Payload{}, ErrAbsent
	}
	if e.Expired(now) {
		delete(s.m, email)
		return domain.Payload{}, ErrExpired
	}
	if !otp.Equal(code, e.Code) {
		return domain.Payload{}, ErrCodeMismatch
	}
	delete(s.m, email)
	return e.Payload, nil
}

// Sweep removes all entries expired at now.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, e := range s.m {
		if e.Expired(now) {
			delete(s.m, email)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
