package models

import "time"

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether the status ends the task
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// TaskPriority represents task urgency
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Task is a unit of work tracked on behalf of a user
type Task struct {
	TaskID      string       `json:"taskId" bson:"taskId" validate:"required"`
	UserID      string       `json:"userId" bson:"userId" validate:"required"`
	Title       string       `json:"title" bson:"title" validate:"required,max=500"`
	Description string       `json:"description" bson:"description" validate:"max=5000"`
	Status      TaskStatus   `json:"status" bson:"status" validate:"required,oneof=pending in_progress completed failed cancelled"`
	Priority    TaskPriority `json:"priority" bson:"priority" validate:"required,oneof=low medium high urgent"`
	Progress    int          `json:"progress" bson:"progress" validate:"min=0,max=100"`
	Result      Value        `json:"result" bson:"result,omitempty"`
	Error       string       `json:"error,omitempty" bson:"error,omitempty"`
	Metadata    Map          `json:"metadata" bson:"metadata"`
	Tags        []string     `json:"tags" bson:"tags"`
	StartedAt   *time.Time   `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	DueDate     *time.Time   `json:"dueDate" bson:"dueDate"`
	Timestamps  `bson:",inline"`
}

func (t *Task) Key() string            { return t.TaskID }
func (t *Task) Owner() string          { return t.UserID }
func (t *Task) TagSet() []string       { return t.Tags }
func (t *Task) Expired(time.Time) bool { return false }

func (t *Task) Attr(field string) (string, bool) {
	switch field {
	case "taskId":
		return t.TaskID, true
	case "userId":
		return t.UserID, true
	case "status":
		return string(t.Status), true
	case "priority":
		return string(t.Priority), true
	}
	return "", false
}

// CreateTaskRequest is the request body for POST /tasks
type CreateTaskRequest struct {
	Title       string       `json:"title" validate:"required,max=500"`
	Description string       `json:"description,omitempty" validate:"max=5000"`
	Priority    TaskPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Tags        []string     `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	Metadata    Map          `json:"metadata,omitempty"`
}

// UpdateTaskRequest is the request body for PUT /tasks/:taskId
type UpdateTaskRequest struct {
	Title       *string       `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Description *string       `json:"description,omitempty" validate:"omitempty,max=5000"`
	Status      *TaskStatus   `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed failed cancelled"`
	Priority    *TaskPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Progress    *int          `json:"progress,omitempty" validate:"omitempty,min=0,max=100"`
	Result      *Value        `json:"result,omitempty"`
	Error       *string       `json:"error,omitempty"`
	Metadata    Map           `json:"metadata,omitempty"`
	Tags        *[]string     `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
}
