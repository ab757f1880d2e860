package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

	"github.com/iliyamo/storefront-api/internal/model"
)

// ErrTokenInvalid is the parent of every verification failure.  Callers that
// only need to reject the request can match on it; the three children say
// why the token was refused.
var (
	ErrTokenInvalid   = errors.New("invalid session token")
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	ErrTokenSignature = fmt.Errorf("%w: signature mismatch", ErrTokenInvalid)
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrTokenInvalid)
)

// SessionClaims is the payload of a session token: the account id and role
// plus the registered iat/exp claims managed by the signer.
type SessionClaims struct {
	ID   uint64     `json:"id"`
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// SessionToken is a signed token together with its expiry.
type SessionToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires"`
}

// TokenSigner issues and verifies HS256 session tokens.  The secret and TTL
// are fixed for the life of the process; changing the secret invalidates
// every outstanding token.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SignerOption customizes a TokenSigner.
type SignerOption func(*TokenSigner)

// WithClock replaces time.Now, for deterministic issuance in tests.
func WithClock(now func() time.Time) SignerOption {
	return func(s *TokenSigner) { s.now = now }
}

// NewTokenSigner builds a signer for secret with the given token lifetime.
func NewTokenSigner(secret []byte, ttl time.Duration, opts ...SignerOption) *TokenSigner {
	s := &TokenSigner{secret: secret, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sign builds and signs a token for the account.  Given the same clock
// reading the output is identical for identical inputs.
func (s *TokenSigner) Sign(id uint64, role model.Role) (SessionToken, error) {
	if id == 0 || !role.Valid() {
		return SessionToken{}, ErrTokenMalformed
	}
	iat := s.now().UTC().Truncate(time.Second)
	exp := iat.Add(s.ttl)
	claims := SessionClaims{
		ID:   id,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
// Only HS256 is accepted, so tokens declaring another algorithm fail with
// ErrTokenSignature.
func (s *TokenSigner) Verify(raw string) (SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return SessionClaims{}, ErrTokenSignature
	default:
		return SessionClaims{}, ErrTokenMalformed
	}
	if claims.ID == 0 || !claims.Role.Valid() {
		return SessionClaims{}, ErrTokenMalformed
	}
	return *claims, nil
}
