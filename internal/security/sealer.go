package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "auth-gateway pending registration v1"

// ErrSealed is returned when sealed data is truncated or fails authentication.
var ErrSealed = errors.New("sealed data is invalid")

// Sealer encrypts values at rest with AES-256-GCM under a key derived from a
// configured secret. Output layout is nonce || ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES key from secret with HKDF-SHA256.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < minHMACSecretLen {
		return nil, ErrWeakSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo)), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal JSON-encodes v and encrypts it. aad binds the ciphertext to a context (e.g. the row key).
func (s *Sealer) Seal(v any, aad []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open decrypts data produced by Seal with the same aad and decodes it into v.
func (s *Sealer) Open(data, aad []byte, v any) error {
	n := s.aead.NonceSize()
	if len(data) < n {
		return ErrSealed
	}
	plaintext, err := s.aead.Open(nil, data[:n], data[n:], aad)
	if err != nil {
		return ErrSealed
	}
	return json.Unmarshal(plaintext, v)
}
