package handlers

import (
	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/models"
	"assistantmemory/internal/services"
)

// ContextHandler handles conversational memory endpoints
type ContextHandler struct {
	contextService *services.ContextService
}

// NewContextHandler creates a new context handler
func NewContextHandler(contextService *services.ContextService) *ContextHandler {
	return &ContextHandler{contextService: contextService}
}

// Create stores a context
// POST /api/v1/contexts
func (h *ContextHandler) Create(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req models.CreateContextRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	rec, err := h.contextService.Create(c.UserContext(), userID, &req)
	if err != nil {
		return storageError(c, err, "Context", "create context")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Context created",
		"context": rec,
	})
}

// List returns the user's contexts
// GET /api/v1/contexts?sessionId=abc&tags=a,b&limit=50&skip=0
func (h *ContextHandler) List(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	limit, skip, tags := listParams(c)
	page, err := h.contextService.List(c.UserContext(), userID, services.ContextFilter{
		SessionID: c.Query("sessionId"),
		Tags:      tags,
		Limit:     limit,
		Skip:      skip,
	})
	if err != nil {
		return storageError(c, err, "Context", "retrieve contexts")
	}
	return c.JSON(fiber.Map{
		"contexts": page.Items,
		"count":    page.Count,
	})
}

// Get returns one context
// GET /api/v1/contexts/:contextId
func (h *ContextHandler) Get(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	rec, err := h.contextService.Get(c.UserContext(), userID, c.Params("contextId"))
	if err != nil {
		return storageError(c, err, "Context", "retrieve context")
	}
	return c.JSON(fiber.Map{"context": rec})
}

// Update edits a context
// PUT /api/v1/contexts/:contextId
func (h *ContextHandler) Update(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req models.UpdateContextRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	rec, err := h.contextService.Update(c.UserContext(), userID, c.Params("contextId"), &req)
	if err != nil {
		return storageError(c, err, "Context", "update context")
	}
	return c.JSON(fiber.Map{
		"message": "Context updated",
		"context": rec,
	})
}

// Delete removes a context
// DELETE /api/v1/contexts/:contextId
func (h *ContextHandler) Delete(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	if err := h.contextService.Delete(c.UserContext(), userID, c.Params("contextId")); err != nil {
		return storageError(c, err, "Context", "delete context")
	}
	return c.JSON(fiber.Map{"message": "Context deleted"})
}
