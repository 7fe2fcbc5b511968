package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/storage"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler handles health check requests
type HealthHandler struct {
	store       storage.Store
	environment string
	startedAt   time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store storage.Store, environment string) *HealthHandler {
	return &HealthHandler{
		store:       store,
		environment: environment,
		startedAt:   time.Now(),
	}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthPingTimeout)
	defer cancel()

	status, code := "healthy", fiber.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		log.Printf("⚠️  [HEALTH] Storage ping failed: %v", err)
		status, code = "unhealthy", fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":      status,
		"storage":     h.store.Mode(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(h.startedAt).Seconds(),
		"environment": h.environment,
	})
}
