package handlers

import (
	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/models"
	"assistantmemory/internal/services"
)

// DataHandler handles structured data endpoints
type DataHandler struct {
	dataService *services.DataService
}

// NewDataHandler creates a new structured data handler
func NewDataHandler(dataService *services.DataService) *DataHandler {
	return &DataHandler{dataService: dataService}
}

// Create stores a payload
// POST /api/v1/data
func (h *DataHandler) Create(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req models.CreateDataRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	rec, err := h.dataService.Create(c.UserContext(), userID, &req)
	if err != nil {
		return storageError(c, err, "Data", "create data")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Data created",
		"data":    rec,
	})
}

// List returns the user's payloads
// GET /api/v1/data?collection=notes&tags=a,b&limit=50&skip=0
func (h *DataHandler) List(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	limit, skip, tags := listParams(c)
	page, err := h.dataService.List(c.UserContext(), userID, services.DataFilter{
		Collection: c.Query("collection"),
		Tags:       tags,
		Limit:      limit,
		Skip:       skip,
	})
	if err != nil {
		return storageError(c, err, "Data", "retrieve data")
	}
	return c.JSON(fiber.Map{
		"data":  page.Items,
		"count": page.Count,
	})
}

// Get returns one payload
// GET /api/v1/data/:dataId
func (h *DataHandler) Get(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	rec, err := h.dataService.Get(c.UserContext(), userID, c.Params("dataId"))
	if err != nil {
		return storageError(c, err, "Data", "retrieve data")
	}
	return c.JSON(fiber.Map{"data": rec})
}

// Update edits a payload
// PUT /api/v1/data/:dataId
func (h *DataHandler) Update(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req models.UpdateDataRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	rec, err := h.dataService.Update(c.UserContext(), userID, c.Params("dataId"), &req)
	if err != nil {
		return storageError(c, err, "Data", "update data")
	}
	return c.JSON(fiber.Map{
		"message": "Data updated",
		"data":    rec,
	})
}

// Delete removes a payload
// DELETE /api/v1/data/:dataId
func (h *DataHandler) Delete(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	if err := h.dataService.Delete(c.UserContext(), userID, c.Params("dataId")); err != nil {
		return storageError(c, err, "Data", "delete data")
	}
	return c.JSON(fiber.Map{"message": "Data deleted"})
}
