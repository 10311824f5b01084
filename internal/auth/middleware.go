package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-chat/internal/domain"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

const partyKey = "auth_party"

// SessionResolver turns a bearer token into a verified party.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (domain.Party, error)
}

// AuthMiddleware validates bearer tokens and stores the resolved party.
type AuthMiddleware struct {
	sessions SessionResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	party, err := m.sessions.ResolveSession(c.UserContext(), strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}

	c.Locals(partyKey, party)
	return c.Next()
}

// PartyFromContext retrieves the authenticated party.
func PartyFromContext(c *fiber.Ctx) (domain.Party, bool) {
	party, ok := c.Locals(partyKey).(domain.Party)
	return party, ok
}
