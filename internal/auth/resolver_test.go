package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-service/internal/domain"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

func TestIdentityResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("sign-in token resolves to the live identity", func(t *testing.T) {
		f := newAuthFixture(t)
		result, err := f.signIn.SignIn(ctx, "alice@x.com", "correctpw")
		require.NoError(t, err)

		identity, err := f.resolver.Resolve(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domain.Identity{SubjectID: "user-alice", Email: "alice@x.com", Role: domain.RoleUser}, identity)
	})

	t.Run("role change after issuance takes effect", func(t *testing.T) {
		f := newAuthFixture(t)
		token, _, err := f.tokens.GenerateToken(TokenSubject{ID: "user-alice", Email: "alice@x.com", Role: domain.RoleUser})
		require.NoError(t, err)

		f.users.set(func(m map[string]*domain.User) {
			m["user-alice"].Role = domain.RoleAdmin
			m["user-alice"].Email = "alice@corp.x.com"
		})

		identity, err := f.resolver.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, identity.Role)
		assert.Equal(t, "alice@corp.x.com", identity.Email)
	})

	t.Run("demotion after issuance takes effect", func(t *testing.T) {
		f := newAuthFixture(t)
		token, _, err := f.tokens.GenerateToken(TokenSubject{ID: "user-alice", Email: "alice@x.com", Role: domain.RoleAdmin})
		require.NoError(t, err)

		identity, err := f.resolver.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, identity.Role)
	})

	t.Run("deleted subject is unauthorized not forbidden", func(t *testing.T) {
		f := newAuthFixture(t)
		token, _, err := f.tokens.GenerateToken(TokenSubject{ID: "user-alice", Email: "alice@x.com", Role: domain.RoleUser})
		require.NoError(t, err)

		f.users.set(func(m map[string]*domain.User) { delete(m, "user-alice") })

		_, err = f.resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		assert.NotErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("empty subject rejected before repository access", func(t *testing.T) {
		f := newAuthFixture(t)
		token, _, err := f.tokens.GenerateToken(TokenSubject{Email: "alice@x.com", Role: domain.RoleUser})
		require.NoError(t, err)

		_, err = f.resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		assert.Equal(t, 0, f.users.lookups)
	})

	t.Run("expired token is unauthorized", func(t *testing.T) {
		f := newAuthFixture(t)
		token, _, err := f.tokens.GenerateToken(TokenSubject{ID: "user-alice", Email: "alice@x.com", Role: domain.RoleUser})
		require.NoError(t, err)

		f.clock.Advance(f.tokens.TTL() + time.Second)

		_, err = f.resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		assert.Equal(t, 0, f.users.lookups)
	})

	t.Run("garbage token is unauthorized", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.resolver.Resolve(ctx, "not.a.jwt")
		assert.Same(t, apperrors.ErrUnauthorized, err)
	})

	t.Run("repository failure is fatal", func(t *testing.T) {
		f := newAuthFixture(t)
		token, _, err := f.tokens.GenerateToken(TokenSubject{ID: "user-alice", Email: "alice@x.com", Role: domain.RoleUser})
		require.NoError(t, err)
		f.users.err = errors.New("timeout")

		_, err = f.resolver.Resolve(ctx, token)
		assert.True(t, apperrors.IsFatal(err))
	})
}
