package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	password := []byte("s3cret-Passw0rd")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == string(password) {
		t.Fatalf("Hash returned %q", hash)
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_SaltedDigestsDiffer(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, _ := h.Hash([]byte("same-password"))
	b, _ := h.Hash([]byte("same-password"))
	if a == b {
		t.Error("two hashes of the same password should differ (random salt)")
	}
	if !h.Verify("same-password", a) || !h.Verify("same-password", b) {
		t.Error("both digests should verify")
	}
}

func TestHasher_EmptyPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if _, err := h.Hash(nil); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("Hash(nil) err = %v, want ErrEmptyPassword", err)
	}
}

func TestHasher_Verify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash([]byte("correct horse"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	tests := []struct {
		name     string
		password string
		digest   string
		want     bool
	}{
		{"match", "correct horse", hash, true},
		{"mismatch", "battery staple", hash, false},
		{"empty password", "", hash, false},
		{"empty digest", "correct horse", "", false},
		{"malformed digest", "correct horse", "not-a-bcrypt-hash", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := h.Verify(tc.password, tc.digest); got != tc.want {
				t.Errorf("Verify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasher_Cost(t *testing.T) {
	if h := NewHasher(12); h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h := NewHasher(0); h.Cost != bcrypt.DefaultCost {
		t.Errorf("zero cost should select DefaultCost, got %d", h.Cost)
	}
	if h := NewHasher(2); h.Cost != bcrypt.MinCost {
		t.Errorf("low cost should clamp to MinCost, got %d", h.Cost)
	}
	if h := NewHasher(99); h.Cost != bcrypt.MaxCost {
		t.Errorf("high cost should clamp to MaxCost, got %d", h.Cost)
	}
}

func TestCheckPasswordLength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     error
	}{
		{"empty", "", ErrEmptyPassword},
		{"at limit", strings.Repeat("a", MaxPasswordBytes), nil},
		{"over limit", strings.Repeat("a", MaxPasswordBytes+1), ErrPasswordTooLong},
		{"counts bytes not runes", strings.Repeat("é", 37), ErrPasswordTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := CheckPasswordLength(tc.password); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestHasher_RejectsOverlongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if _, err := h.Hash([]byte(strings.Repeat("x", 80))); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Hash(80 bytes) err = %v, want ErrPasswordTooLong", err)
	}
}
