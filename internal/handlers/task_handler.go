package handlers

import (
	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/models"
	"assistantmemory/internal/services"
)

// TaskHandler handles task endpoints
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// Create stores a task
// POST /api/v1/tasks
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req models.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	task, err := h.taskService.Create(c.UserContext(), userID, &req)
	if err != nil {
		return storageError(c, err, "Task", "create task")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Task created",
		"task":    task,
	})
}

// List returns the user's tasks
// GET /api/v1/tasks?status=pending&priority=high&tags=a,b&limit=50&skip=0
func (h *TaskHandler) List(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	limit, skip, tags := listParams(c)
	page, err := h.taskService.List(c.UserContext(), userID, services.TaskFilter{
		Status:   models.TaskStatus(c.Query("status")),
		Priority: models.TaskPriority(c.Query("priority")),
		Tags:     tags,
		Limit:    limit,
		Skip:     skip,
	})
	if err != nil {
		return storageError(c, err, "Task", "retrieve tasks")
	}
	return c.JSON(fiber.Map{
		"tasks": page.Items,
		"count": page.Count,
	})
}

// Get returns one task
// GET /api/v1/tasks/:taskId
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	task, err := h.taskService.Get(c.UserContext(), userID, c.Params("taskId"))
	if err != nil {
		return storageError(c, err, "Task", "retrieve task")
	}
	return c.JSON(fiber.Map{"task": task})
}

// Update edits a task and applies status transition timestamps
// PUT /api/v1/tasks/:taskId
func (h *TaskHandler) Update(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req models.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	task, err := h.taskService.Update(c.UserContext(), userID, c.Params("taskId"), &req)
	if err != nil {
		return storageError(c, err, "Task", "update task")
	}
	return c.JSON(fiber.Map{
		"message": "Task updated",
		"task":    task,
	})
}

// Delete removes a task
// DELETE /api/v1/tasks/:taskId
func (h *TaskHandler) Delete(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	if err := h.taskService.Delete(c.UserContext(), userID, c.Params("taskId")); err != nil {
		return storageError(c, err, "Task", "delete task")
	}
	return c.JSON(fiber.Map{"message": "Task deleted"})
}
