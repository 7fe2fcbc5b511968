package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/storage"
)

// APIKeyOrJWTMiddleware allows authentication via either API key or JWT.
// Checks the X-API-Key header first, falls back to the bearer token.
func APIKeyOrJWTMiddleware(authenticator Authenticator) fiber.Handler {
	jwtMiddleware := LocalAuthMiddleware(authenticator)

	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			return jwtMiddleware(c)
		}

		id, err := authenticator.AuthenticateAPIKey(c.UserContext(), apiKey)
		if storage.KindOf(err) == storage.KindUnavailable {
			log.Printf("⚠️  [APIKEY-AUTH] Key lookup failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Authentication temporarily unavailable",
			})
		}
		if err != nil {
			log.Printf("❌ [APIKEY-AUTH] Invalid key: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		setIdentity(c, id, "api_key")
		return c.Next()
	}
}
