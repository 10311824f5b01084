package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-chat/internal/domain"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

// RequireRole ensures the authenticated party holds one of the allowed roles.
func RequireRole(allowed ...domain.PartyRole) fiber.Handler {
	allowedSet := make(map[domain.PartyRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		party, ok := PartyFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[party.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
