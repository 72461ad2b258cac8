package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-service/internal/domain"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTokenManager(t *testing.T, clock *fakeClock) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(testSigningKey, time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	return tm
}

var alice = TokenSubject{ID: "user-1", Email: "alice@x.com", Role: domain.RoleUser}

func requireReason(t *testing.T, err error, want InvalidTokenReason) {
	t.Helper()
	var invalid *InvalidTokenError
	require.True(t, errors.As(err, &invalid), "expected InvalidTokenError, got %v", err)
	assert.Equal(t, want, invalid.Reason)
}

func TestNewTokenManager(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	require.ErrorIs(t, err, ErrMissingSigningKey)

	tm, err := NewTokenManager(testSigningKey, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, tm.TTL())
}

func TestTokenManager_GenerateAndParse(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokenManager(t, clock)

	token, exp, err := tm.GenerateToken(alice)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, clock.now.Add(time.Hour), exp)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID())
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, clock.now, claims.IssuedAt.Time.UTC())
	assert.Equal(t, exp, claims.ExpiresAt.Time.UTC())
}

func TestTokenManager_CarriesOnlyIdentityClaims(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokenManager(t, clock)

	token, _, err := tm.GenerateToken(alice)
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[1])
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(
		`{"sub":"user-1","email":"alice@x.com","role":"user","iat":%d,"exp":%d}`,
		clock.now.Unix(), clock.now.Add(time.Hour).Unix(),
	), string(payload))
}

func TestTokenManager_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokenManager(t, clock)

	token, _, err := tm.GenerateToken(alice)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	_, err = tm.ParseToken(token)
	require.NoError(t, err, "token must be valid just before expiry")

	clock.Advance(2 * time.Second)
	_, err = tm.ParseToken(token)
	requireReason(t, err, TokenExpired)
}

func TestTokenManager_ParseRejects(t *testing.T) {
	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	tm := newTestTokenManager(t, clock)

	valid, _, err := tm.GenerateToken(alice)
	require.NoError(t, err)

	other, err := NewTokenManager("another-signing-key-0123456789abcd", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	foreign, _, err := other.GenerateToken(alice)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	forgedPayload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(
		`{"sub":"user-1","email":"alice@x.com","role":"admin","iat":%d,"exp":%d}`,
		clock.now.Unix(), clock.now.Add(time.Hour).Unix(),
	)))
	tampered := parts[0] + "." + forgedPayload + "." + parts[2]

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).
		SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason InvalidTokenReason
	}{
		{name: "empty", token: "", reason: TokenMalformed},
		{name: "garbage", token: "invalid-token-string", reason: TokenMalformed},
		{name: "foreign key", token: foreign, reason: TokenBadSignature},
		{name: "tampered payload", token: tampered, reason: TokenBadSignature},
		{name: "unexpected algorithm", token: hs512, reason: TokenBadSignature},
		{name: "missing expiry", token: noExpiry, reason: TokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := tm.ParseToken(tt.token)
			assert.Nil(t, claims)
			requireReason(t, err, tt.reason)
		})
	}
}
