package middleware

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"assistantmemory/pkg/auth"
)

// Authenticator resolves credentials to an identity
type Authenticator interface {
	AuthenticateToken(token string) (*auth.Identity, error)
	AuthenticateAPIKey(ctx context.Context, key string) (*auth.Identity, error)
}

// LocalAuthMiddleware verifies bearer tokens issued by this server
func LocalAuthMiddleware(authenticator Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ExtractToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization token",
			})
		}

		id, err := authenticator.AuthenticateToken(token)
		if err != nil {
			log.Printf("❌ [AUTH] Token rejected: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		setIdentity(c, id, "jwt")
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, id *auth.Identity, authType string) {
	c.Locals("user_id", id.UserID)
	c.Locals("user_username", id.Username)
	c.Locals("user_role", id.Role)
	c.Locals("auth_type", authType)
}

// UserID returns the authenticated user's id, or "" outside an
// authenticated route
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}
