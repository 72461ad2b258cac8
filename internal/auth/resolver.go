package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

// IdentityResolver turns a bearer token into a trusted caller identity.
type IdentityResolver struct {
	tokens  *TokenManager
	users   UserStore
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewIdentityResolver constructs a resolver. metrics may be nil.
func NewIdentityResolver(tokens *TokenManager, users UserStore, logger *zap.Logger, metrics *observability.Metrics) *IdentityResolver {
	return &IdentityResolver{tokens: tokens, users: users, logger: logger, metrics: metrics}
}

// Resolve validates token and reloads the subject. Email and role come from
// the live record, so demotions and deletions apply on the next request.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := r.tokens.ParseToken(token)
	if err != nil {
		var invalid *InvalidTokenError
		if errors.As(err, &invalid) {
			r.reject(string(invalid.Reason))
		} else {
			r.reject("invalid")
		}
		return domain.Identity{}, apperrors.ErrUnauthorized
	}

	subjectID := claims.SubjectID()
	if subjectID == "" {
		r.reject("missing-subject")
		return domain.Identity{}, apperrors.ErrUnauthorized
	}

	user, err := r.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.reject("unknown-subject")
			return domain.Identity{}, apperrors.ErrUnauthorized
		}
		return domain.Identity{}, apperrors.NewInternalError(fmt.Errorf("lookup user by id: %w", err))
	}

	return user.Identity(), nil
}

func (r *IdentityResolver) reject(reason string) {
	r.logger.Debug("token rejected", zap.String("reason", reason))
	r.metrics.RecordTokenRejected(reason)
}
