package handlers

import (
	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/models"
	"assistantmemory/internal/services"
)

// UserPreferencesHandler handles user preferences HTTP requests
type UserPreferencesHandler struct {
	preferenceService *services.PreferenceService
}

// NewUserPreferencesHandler creates a new UserPreferencesHandler
func NewUserPreferencesHandler(preferenceService *services.PreferenceService) *UserPreferencesHandler {
	return &UserPreferencesHandler{preferenceService: preferenceService}
}

// Get retrieves user preferences, creating the defaults on first access
// GET /api/v1/preferences
func (h *UserPreferencesHandler) Get(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	prefs, err := h.preferenceService.Get(c.UserContext(), userID)
	if err != nil {
		return storageError(c, err, "Preferences", "retrieve preferences")
	}
	return c.JSON(fiber.Map{"preferences": prefs})
}

// Update updates user preferences
// PUT /api/v1/preferences
func (h *UserPreferencesHandler) Update(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req models.UpdatePreferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	prefs, err := h.preferenceService.Update(c.UserContext(), userID, &req)
	if err != nil {
		return storageError(c, err, "Preferences", "update preferences")
	}
	return c.JSON(fiber.Map{
		"message":     "Preferences updated",
		"preferences": prefs,
	})
}

// GetKey retrieves a single preference value
// GET /api/v1/preferences/:key
func (h *UserPreferencesHandler) GetKey(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	key := c.Params("key")
	value, err := h.preferenceService.Lookup(c.UserContext(), userID, key)
	if err != nil {
		return storageError(c, err, "Preference key", "retrieve preference")
	}
	return c.JSON(fiber.Map{
		"key":   key,
		"value": value,
	})
}
