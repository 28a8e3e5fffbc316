// Package otp generates and compares the one-time codes used to confirm a registration.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// Digits is the fixed width of a code.
	Digits   = 6
	minCode  = 100000
	codeSpan = 900000
)

// Generator produces a one-time code. The coordinator takes one so tests can pin codes.
type Generator func() (string, error)

// Generate returns a uniformly distributed code in 100000–999999 drawn from crypto/rand.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("otp: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()+minCode), nil
}

// Fixed returns a Generator that always yields code.
func Fixed(code string) Generator {
	return func() (string, error) { return code, nil }
}

// Hash returns the hex SHA-256 of code, used where codes rest outside process memory.
func Hash(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// Equal compares two plaintext codes in constant time. Empty codes never match.
func Equal(provided, stored string) bool {
	if provided == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(stored)) == 1
}

// HashEqual compares provided against a stored Hash in constant time.
func HashEqual(provided, storedHash string) bool {
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Hash(provided)), []byte(storedHash)) == 1
}
