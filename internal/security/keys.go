package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidKey is returned when session key material cannot sign or verify tokens.
var ErrInvalidKey = errors.New("invalid key")

// LoadPEM resolves a JWT_PRIVATE_KEY / JWT_PUBLIC_KEY setting. Inline PEM is
// returned as-is with literal `\n` expanded; anything else is read as a file path.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, ErrInvalidKey
	case strings.HasPrefix(s, "-----BEGIN"):
		return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
	}
	b, err := os.ReadFile(s)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return b, nil
}

// ParsePrivateKey parses an RSA or P-256 ECDSA private key in any encoding jwt accepts
// (PKCS#1, PKCS#8, SEC 1).
func ParsePrivateKey(s string) (crypto.Signer, error) {
	b, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	if k, rerr := jwt.ParseRSAPrivateKeyFromPEM(b); rerr == nil {
		return k, nil
	}
	k, err := jwt.ParseECPrivateKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return k, nil
}

// ParsePublicKey parses an RSA or ECDSA public key, or the key of a certificate.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	b, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	if k, rerr := jwt.ParseRSAPublicKeyFromPEM(b); rerr == nil {
		return k, nil
	}
	k, err := jwt.ParseECPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return k, nil
}

// SigningMethodFor returns RS256 for RSA keys, ES256 for P-256 keys and nil otherwise.
func SigningMethodFor(pub crypto.PublicKey) jwt.SigningMethod {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		if k.Curve != nil && k.Curve.Params().Name == "P-256" {
			return jwt.SigningMethodES256
		}
	}
	return nil
}
