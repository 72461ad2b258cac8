package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

// UserStore is the slice of the user repository the auth core depends on.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// Authenticator runs the password sign-in flow.
type Authenticator struct {
	users   UserStore
	hasher  PasswordHasher
	tokens  *TokenManager
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAuthenticator wires the sign-in flow. metrics may be nil.
func NewAuthenticator(users UserStore, hasher PasswordHasher, tokens *TokenManager, logger *zap.Logger, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{users: users, hasher: hasher, tokens: tokens, logger: logger, metrics: metrics}
}

// SignIn verifies email and password and issues an access token. Unknown
// emails and wrong passwords both return apperrors.ErrUnauthorized.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*domain.AccessToken, error) {
	user, err := a.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(fmt.Errorf("lookup user by email: %w", err))
	}

	stored := ""
	if user != nil {
		stored = user.PasswordHash
	}
	// Runs even when the user is missing; an empty hash costs the same as a real one.
	ok, err := a.hasher.Verify(ctx, password, stored)
	if err != nil {
		return nil, err
	}
	if user == nil || !ok {
		a.logger.Debug("sign-in rejected", zap.Bool("known_identifier", user != nil))
		a.metrics.RecordSignIn(observability.OutcomeRejected)
		return nil, apperrors.ErrUnauthorized
	}

	if a.hasher.NeedsRehash(stored) {
		a.upgradeHash(ctx, user.ID, password)
	}

	token, _, err := a.tokens.GenerateToken(TokenSubject{ID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("sign token: %w", err))
	}

	a.metrics.RecordSignIn(observability.OutcomeSuccess)
	return &domain.AccessToken{AccessToken: token}, nil
}

// upgradeHash re-hashes with the current parameters. Failure keeps the old
// hash and does not fail the sign-in.
func (a *Authenticator) upgradeHash(ctx context.Context, userID, password string) {
	hash, err := a.hasher.Hash(ctx, password)
	if err == nil {
		err = a.users.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		a.logger.Warn("password hash upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	a.logger.Info("password hash upgraded", zap.String("user_id", userID))
}
