package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest plaintext bcrypt accepts.
const MaxPasswordBytes = 72

var (
	// ErrEmptyPassword is returned by Hash when the plaintext is empty.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned for passwords over MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// CheckPasswordLength reports whether password can be hashed.
func CheckPasswordLength(password string) error {
	switch {
	case password == "":
		return ErrEmptyPassword
	case len(password) > MaxPasswordBytes:
		return ErrPasswordTooLong
	}
	return nil
}

// Hasher is the credential hasher: bcrypt with a per-hash random salt.
// Callers must not log or persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to 4–31.
// A non-positive cost selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns the bcrypt digest of password, suitable for handing to the
// directory service as the stored password hash.
func (h *Hasher) Hash(password []byte) (string, error) {
	if err := CheckPasswordLength(string(password)); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against digest. It returns nil on match and
// bcrypt.ErrMismatchedHashAndPassword (or a parse error) otherwise.
func (h *Hasher) Compare(digest string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(digest), password)
}

// Verify reports whether password matches digest. A malformed digest never matches.
func (h *Hasher) Verify(password, digest string) bool {
	if digest == "" || password == "" {
		return false
	}
	return h.Compare(digest, []byte(password)) == nil
}
