package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/user-service/internal/domain"
)

// ErrMissingSigningKey is returned when a TokenManager is built without a key.
var ErrMissingSigningKey = errors.New("token signing key is empty")

// InvalidTokenReason classifies why validation rejected a token. It is meant
// for logs only; clients always see the same Unauthorized outcome.
type InvalidTokenReason string

const (
	TokenMalformed    InvalidTokenReason = "malformed"
	TokenBadSignature InvalidTokenReason = "bad-signature"
	TokenExpired      InvalidTokenReason = "expired"
)

// InvalidTokenError is returned by ParseToken.
type InvalidTokenError struct {
	Reason InvalidTokenReason
	Err    error
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + string(e.Reason)
}

func (e *InvalidTokenError) Unwrap() error {
	return e.Err
}

// Claims describes JWT payload. Subject, IssuedAt and ExpiresAt come from
// the registered claims; nothing else is carried.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the user id the token was issued for.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// TokenSubject is the identity a token is issued for.
type TokenSubject struct {
	ID    string
	Email string
	Role  domain.Role
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		tm.now = now
	}
}

// TokenManager handles issuing and validating JWT tokens. It is immutable
// after construction and safe for concurrent use.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenManager builds a new manager. A non-positive ttl falls back to one hour.
func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrMissingSigningKey
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	tm := &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(tm)
	}
	tm.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	return tm, nil
}

// TTL returns the lifetime of issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// GenerateToken builds and signs a JWT for the subject.
func (tm *TokenManager) GenerateToken(subject TokenSubject) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Email: subject.Email,
		Role:  subject.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken verifies the signature, then expiry, and returns the claims.
// Every failure is an *InvalidTokenError.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := tm.parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		return nil, &InvalidTokenError{Reason: classify(err), Err: err}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, &InvalidTokenError{Reason: TokenMalformed}
	}
	return claims, nil
}

func classify(err error) InvalidTokenReason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return TokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return TokenBadSignature
	default:
		return TokenMalformed
	}
}
