package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// RegisterInput is the public sign-up payload.
type RegisterInput struct {
	Email    string
	Password string
}

// UpdateInput carries the fields to change; nil leaves a field untouched.
type UpdateInput struct {
	Email    *string
	Password *string
	Role     *domain.Role
}

// UserDependencies encapsulates collaborators for the user service.
type UserDependencies struct {
	Users   repository.UserRepository
	Hasher  auth.PasswordHasher
	Events  events.Dispatcher
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// UserService implements user management on top of the access policy.
type UserService struct {
	users   repository.UserRepository
	hasher  auth.PasswordHasher
	events  events.Dispatcher
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewUserService builds the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:   deps.Users,
		hasher:  deps.Hasher,
		events:  deps.Events,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// Register creates a new account with the user role.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{Email: email, PasswordHash: hash, Role: domain.RoleUser}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.mapRepoError(err, "")
	}

	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID, events.Actor{}, nil))
	return user, nil
}

// List returns every user. Admin only.
func (s *UserService) List(ctx context.Context, caller domain.Identity) ([]*domain.User, error) {
	if err := s.authorize(caller, auth.Rule{Roles: []domain.Role{domain.RoleAdmin}}); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// Get returns a single user to any authenticated caller.
func (s *UserService) Get(ctx context.Context, caller domain.Identity, id string) (*domain.User, error) {
	if err := s.authorize(caller, auth.Rule{}); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return user, nil
}

// Update changes a user. Owners may edit themselves, admins anyone; only
// admins may change a role.
func (s *UserService) Update(ctx context.Context, caller domain.Identity, id string, in UpdateInput) (*domain.User, error) {
	if err := s.authorize(caller, auth.Rule{OwnerID: id}); err != nil {
		return nil, err
	}
	if in.Role != nil {
		if err := s.authorize(caller, auth.Rule{Roles: []domain.Role{domain.RoleAdmin}}); err != nil {
			return nil, err
		}
		if !in.Role.Valid() {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(*in.Role)})
		}
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}

	payload := events.UserUpdatedPayload{}
	profileChanged := false

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		if email != user.Email {
			user.Email = email
			payload.Fields = append(payload.Fields, "email")
			profileChanged = true
		}
	}
	if in.Role != nil && *in.Role != user.Role {
		payload.OldRole, payload.NewRole = user.Role, *in.Role
		user.Role = *in.Role
		payload.Fields = append(payload.Fields, "role")
		profileChanged = true
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(ctx, *in.Password)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
		payload.Fields = append(payload.Fields, "password")
	}

	switch {
	case profileChanged:
		err = s.users.Update(ctx, user)
	case in.Password != nil:
		err = s.users.UpdatePasswordHash(ctx, user.ID, user.PasswordHash)
	}
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}

	if len(payload.Fields) > 0 {
		s.publish(ctx, events.NewEvent(events.EventUserUpdated, user.ID, actorOf(caller), payload))
	}
	return user, nil
}

// Delete removes a user. Owners may delete themselves, admins anyone.
func (s *UserService) Delete(ctx context.Context, caller domain.Identity, id string) error {
	if err := s.authorize(caller, auth.Rule{OwnerID: id}); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return s.mapRepoError(err, id)
	}
	s.publish(ctx, events.NewEvent(events.EventUserDeleted, id, actorOf(caller), nil))
	return nil
}

// authorize runs before any lookup, so a denied caller learns nothing about
// whether the target exists.
func (s *UserService) authorize(caller domain.Identity, rule auth.Rule) error {
	if caller.SubjectID == "" {
		return apperrors.ErrUnauthorized
	}
	decision := auth.Authorize(caller, rule)
	if !decision.Allowed {
		s.metrics.RecordAccessDenied(string(decision.Reason))
		s.logger.Debug("access denied",
			zap.String("caller_id", caller.SubjectID),
			zap.String("gate", string(decision.Reason)),
		)
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, event)
}

func (s *UserService) mapRepoError(err error, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	case errors.Is(err, repository.ErrEmailTaken):
		return apperrors.NewConflict("user with this email already exists", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}

func actorOf(caller domain.Identity) events.Actor {
	return events.Actor{ID: caller.SubjectID, Role: caller.Role}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.NewValidationError("password too short", map[string]any{
			"field":      "password",
			"min_length": MinPasswordLength,
		})
	}
	return nil
}
