package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP) applied to everything under /api
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Credential endpoints (per IP): register and login
	AuthMax        int
	AuthExpiration time.Duration
}

// NewRateLimitConfig builds limits from the configured window. Credential
// endpoints get a fifth of the global budget with a floor of 5.
func NewRateLimitConfig(max int, window time.Duration, development bool) *RateLimitConfig {
	config := &RateLimitConfig{
		GlobalAPIMax:        max,
		GlobalAPIExpiration: window,
		AuthMax:             max / 5,
		AuthExpiration:      window,
	}
	if config.AuthMax < 5 {
		config.AuthMax = 5
	}

	// Development mode: more lenient limits
	if development {
		config.GlobalAPIMax *= 10
		config.AuthMax *= 10
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}
	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// AuthRateLimiter limits credential attempts per IP
func AuthRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.AuthMax,
		Expiration: config.AuthExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "auth-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Auth endpoint limit reached for IP: %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many authentication attempts. Please wait before trying again.",
				"retry_after": int(config.AuthExpiration.Seconds()),
			})
		},
		// Only failed attempts count against the budget
		SkipSuccessfulRequests: true,
	})
}
