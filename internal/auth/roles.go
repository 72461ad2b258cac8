package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/domain"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

// RequireRoles ensures the resolved caller holds one of the allowed roles.
// It must run after AuthMiddleware.Handle.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.ErrUnauthorized
		}
		if !RoleAllows(allowed, identity.Role) {
			return apperrors.ErrForbidden
		}
		return c.Next()
	}
}

// RequireAuthenticated rejects requests without a resolved identity.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return apperrors.ErrUnauthorized
		}
		return c.Next()
	}
}
