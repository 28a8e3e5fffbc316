package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"auth-gateway/backend/internal/registration/domain"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func pending(email, code string) *domain.PendingRegistration {
	return domain.NewPending(domain.Payload{Email: email, Username: "alice", Password: "pw"}, code, t0, domain.DefaultTTL)
}

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Put(ctx, pending("a@x.com", "482193")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "a@x.com", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Code != "482193" || got.Payload.Username != "alice" {
		t.Errorf("Get = %+v", got)
	}
	if _, err := s.Get(ctx, "b@x.com", t0); !errors.Is(err, ErrAbsent) {
		t.Errorf("Get missing err = %v, want ErrAbsent", err)
	}
}

func TestMemoryStore_PutOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, pending("a@x.com", "111111"))
	_ = s.Put(ctx, pending("a@x.com", "222222"))
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if _, err := s.TakeIfValid(ctx, "a@x.com", "111111", t0); !errors.Is(err, ErrCodeMismatch) {
		t.Errorf("old code err = %v, want ErrCodeMismatch", err)
	}
	if _, err := s.TakeIfValid(ctx, "a@x.com", "222222", t0); err != nil {
		t.Errorf("new code err = %v", err)
	}
}

func TestMemoryStore_GetExpiredRemovesEntry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, pending("a@x.com", "482193"))
	if _, err := s.Get(ctx, "a@x.com", t0.Add(301*time.Second)); !errors.Is(err, ErrAbsent) {
		t.Fatalf("Get expired err = %v, want ErrAbsent", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after expired Get, want 0", s.Len())
	}
}

func TestMemoryStore_TakeIfValid(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		at      time.Time
		wantErr error
		left    int
	}{
		{"correct before expiry", "482193", t0.Add(200 * time.Second), nil, 0},
		{"wrong code keeps entry", "000000", t0.Add(200 * time.Second), ErrCodeMismatch, 1},
		{"correct after expiry", "482193", t0.Add(301 * time.Second), ErrExpired, 0},
		{"correct at exact expiry", "482193", t0.Add(domain.DefaultTTL), ErrExpired, 0},
		{"empty code", "", t0, ErrCodeMismatch, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMemoryStore()
			ctx := context.Background()
			_ = s.Put(ctx, pending("a@x.com", "482193"))
			p, err := s.TakeIfValid(ctx, "a@x.com", tc.code, tc.at)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && p.Email != "a@x.com" {
				t.Errorf("payload = %+v", p)
			}
			if s.Len() != tc.left {
				t.Errorf("Len = %d, want %d", s.Len(), tc.left)
			}
		})
	}
}

func TestMemoryStore_WrongThenRightCode(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, pending("a@x.com", "482193"))
	if _, err := s.TakeIfValid(ctx, "a@x.com", "123456", t0.Add(10*time.Second)); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("wrong code err = %v", err)
	}
	if _, err := s.TakeIfValid(ctx, "a@x.com", "482193", t0.Add(20*time.Second)); err != nil {
		t.Fatalf("right code after wrong: %v", err)
	}
	if _, err := s.TakeIfValid(ctx, "a@x.com", "482193", t0.Add(30*time.Second)); !errors.Is(err, ErrAbsent) {
		t.Fatalf("second take err = %v, want ErrAbsent", err)
	}
}

func TestMemoryStore_ConcurrentTakeExactlyOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, pending("a@x.com", "482193"))

	const n = 64
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		absents   atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.TakeIfValid(ctx, "a@x.com", "482193", t0.Add(time.Second))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAbsent):
				absents.Add(1)
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	if successes.Load() != 1 {
		t.Errorf("successes = %d, want 1", successes.Load())
	}
	if absents.Load() != n-1 {
		t.Errorf("absents = %d, want %d", absents.Load(), n-1)
	}
}

func TestMemoryStore_ConcurrentPutSameEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Put(ctx, pending("a@x.com", fmt.Sprintf("%06d", 100000+i)))
		}(i)
	}
	wg.Wait()
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, pending("old@x.com", "1"))
	fresh := domain.NewPending(domain.Payload{Email: "new@x.com"}, "2", t0.Add(200*time.Second), domain.DefaultTTL)
	_ = s.Put(ctx, fresh)

	n, err := s.Sweep(ctx, t0.Add(350*time.Second))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 || s.Len() != 1 {
		t.Errorf("Sweep removed %d, Len = %d; want 1, 1", n, s.Len())
	}
	if _, err := s.Get(ctx, "new@x.com", t0.Add(350*time.Second)); err != nil {
		t.Errorf("fresh entry should survive sweep: %v", err)
	}
}
