package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/domain"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// Resolver resolves bearer tokens to identities.
type Resolver interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// AuthMiddleware validates bearer tokens and loads the caller identity.
type AuthMiddleware struct {
	resolver Resolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(resolver Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return apperrors.ErrUnauthorized
	}

	identity, err := m.resolver.Resolve(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}
