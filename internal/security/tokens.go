package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minHMACSecretLen is the shortest accepted HS256 secret, in bytes.
const minHMACSecretLen = 32

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed by other key material.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSigningKey is returned when neither a key pair nor an HMAC secret is configured.
	ErrNoSigningKey = errors.New("no session signing key configured")
	// ErrWeakSecret is returned for HMAC secrets shorter than 32 bytes.
	ErrWeakSecret = errors.New("session signing secret must be at least 32 bytes")
)

// SessionClaims are the JWT claims of a session token. Subject is the account username.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Session is an issued session token and its metadata. Sessions are not persisted.
type Session struct {
	Token     string
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider issues and validates session tokens. Its key material is set
// once at construction and never mutated, so it is safe for concurrent use.
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	ttl       time.Duration
	nowF      func() time.Time
}

// KeyConfig selects session signing key material. A private/public PEM pair
// (RS256 or ES256) takes precedence over Secret (HS256).
type KeyConfig struct {
	PrivateKeyPEM string
	PublicKeyPEM  string
	Secret        string
	Issuer        string
	Audience      string
	TTL           time.Duration
}

// LoadTokenProvider builds a TokenProvider from cfg.
func LoadTokenProvider(cfg KeyConfig) (*TokenProvider, error) {
	if cfg.PrivateKeyPEM != "" || cfg.PublicKeyPEM != "" {
		signer, err := ParsePrivateKey(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		pub, err := ParsePublicKey(cfg.PublicKeyPEM)
		if err != nil {
			return nil, err
		}
		return NewTokenProvider(signer, pub, cfg.Issuer, cfg.Audience, cfg.TTL)
	}
	if cfg.Secret != "" {
		return NewHMACTokenProvider([]byte(cfg.Secret), cfg.Issuer, cfg.Audience, cfg.TTL)
	}
	return nil, ErrNoSigningKey
}

// NewTokenProvider returns a TokenProvider that signs with privateKey (RS256 or ES256)
// and verifies with publicKey.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	if privateKey == nil || publicKey == nil {
		return nil, ErrInvalidKey
	}
	method := SigningMethodFor(privateKey.Public())
	if method == nil {
		return nil, ErrInvalidKey
	}
	if pm := SigningMethodFor(publicKey); pm == nil || pm.Alg() != method.Alg() {
		return nil, ErrInvalidKey
	}
	return newProvider(method, privateKey, publicKey, issuer, audience, ttl), nil
}

// NewHMACTokenProvider returns a TokenProvider that signs and verifies with an HS256 secret.
func NewHMACTokenProvider(secret []byte, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	if len(secret) < minHMACSecretLen {
		return nil, ErrWeakSecret
	}
	key := append([]byte(nil), secret...)
	return newProvider(jwt.SigningMethodHS256, key, key, issuer, audience, ttl), nil
}

func newProvider(method jwt.SigningMethod, signKey, verifyKey any, issuer, audience string, ttl time.Duration) *TokenProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenProvider{
		method:    method,
		signKey:   signKey,
		verifyKey: verifyKey,
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Alg returns the JWS algorithm used to sign tokens.
func (p *TokenProvider) Alg() string { return p.method.Alg() }

// Issue signs a session token bound to subject (the account username).
func (p *TokenProvider) Issue(subject string) (*Session, error) {
	if subject == "" {
		return nil, ErrInvalidToken
	}
	jti, err := generateJTI()
	if err != nil {
		return nil, err
	}
	now := p.nowF().Truncate(time.Second)
	expiresAt := now.Add(p.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Subject: subject, ID: jti, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// Validate checks signature, algorithm, exp, iss and aud and returns the claims.
func (p *TokenProvider) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return p.verifyKey, nil },
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowF),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
