package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"assistantmemory/internal/models"
	"assistantmemory/internal/storage"
)

// TaskFilter narrows a task listing
type TaskFilter struct {
	Status   models.TaskStatus
	Priority models.TaskPriority
	Tags     []string
	Limit    int
	Skip     int
}

// TaskService manages tasks and their lifecycle timestamps
type TaskService struct {
	tasks storage.Collection[*models.Task]
	now   func() time.Time
}

// NewTaskService creates a new task service
func NewTaskService(store storage.Store) *TaskService {
	return &TaskService{tasks: store.Tasks(), now: time.Now}
}

// Create stores a new pending task
func (s *TaskService) Create(ctx context.Context, userID string, req *models.CreateTaskRequest) (*models.Task, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = models.Map{}
	}

	task := &models.Task{
		TaskID:      uuid.NewString(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatusPending,
		Priority:    priority,
		Progress:    0,
		Metadata:    metadata,
		Tags:        nonNilTags(req.Tags),
		DueDate:     req.DueDate,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Get returns one of the user's tasks
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*models.Task, error) {
	return s.tasks.GetByID(ctx, userID, taskID)
}

// List returns the user's tasks, newest first
func (s *TaskService) List(ctx context.Context, userID string, f TaskFilter) (*storage.Page[*models.Task], error) {
	equals := map[string]string{}
	if f.Status != "" {
		equals["status"] = string(f.Status)
	}
	if f.Priority != "" {
		equals["priority"] = string(f.Priority)
	}
	return s.tasks.Query(ctx, storage.Query{
		Owner:  userID,
		Equals: equals,
		Tags:   f.Tags,
		Limit:  f.Limit,
		Skip:   f.Skip,
	})
}

// Update applies the provided fields to a task. Moving to in_progress
// stamps startedAt unless the caller supplies one; moving to a terminal
// status stamps completedAt.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, req *models.UpdateTaskRequest) (*models.Task, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	patch := storage.Patch{}
	if req.Title != nil {
		patch["title"] = *req.Title
	}
	if req.Description != nil {
		patch["description"] = *req.Description
	}
	if req.Status != nil {
		patch["status"] = *req.Status
		switch {
		case *req.Status == models.TaskStatusInProgress && req.StartedAt == nil:
			patch["startedAt"] = now
		case req.Status.IsTerminal():
			patch["completedAt"] = now
		}
	}
	if req.StartedAt != nil {
		patch["startedAt"] = req.StartedAt.UTC()
	}
	if req.Priority != nil {
		patch["priority"] = *req.Priority
	}
	if req.Progress != nil {
		patch["progress"] = *req.Progress
	}
	if req.Result != nil {
		patch["result"] = *req.Result
	}
	if req.Error != nil {
		patch["error"] = *req.Error
	}
	if req.Metadata != nil {
		patch["metadata"] = req.Metadata
	}
	if req.Tags != nil {
		patch["tags"] = nonNilTags(*req.Tags)
	}
	return s.tasks.UpdateByID(ctx, userID, taskID, patch)
}

// Delete removes one of the user's tasks
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	return s.tasks.DeleteByID(ctx, userID, taskID)
}
