package domain

import (
	"testing"
	"time"
)

func TestNewPending_UsesTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewPending(Payload{Email: "a@x.com"}, "482193", now, 0)
	if !p.ExpiresAt.Equal(now.Add(DefaultTTL)) {
		t.Errorf("ExpiresAt = %v, want now+%v", p.ExpiresAt, DefaultTTL)
	}
	p = NewPending(Payload{Email: "a@x.com"}, "482193", now, time.Minute)
	if !p.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want now+1m", p.ExpiresAt)
	}
	if p.Email != "a@x.com" || p.Code != "482193" {
		t.Errorf("unexpected entry %+v", p)
	}
}

func TestPendingRegistration_ExpiredBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewPending(Payload{Email: "a@x.com"}, "1", now, DefaultTTL)
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"at creation", now, false},
		{"at 200s", now.Add(200 * time.Second), false},
		{"just before expiry", p.ExpiresAt.Add(-time.Nanosecond), false},
		{"at expiry", p.ExpiresAt, true},
		{"at 301s", now.Add(301 * time.Second), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Expired(tc.at); got != tc.want {
				t.Errorf("Expired(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestPayload_Normalize(t *testing.T) {
	got := Payload{Email: "  A@X.Com ", Username: " alice ", FullName: " Alice A ", PhoneNumber: " 555 ", Password: " keep "}.Normalize()
	want := Payload{Email: "a@x.com", Username: "alice", FullName: "Alice A", PhoneNumber: "555", Password: " keep "}
	if got != want {
		t.Errorf("Normalize = %+v, want %+v", got, want)
	}
}
