package model

import "time"

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	Statuses   = []string{StatusTodo, StatusInProgress, StatusDone}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
)

type Task struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	Priority    string    `json:"priority" db:"priority"`
	OwnerID     int64     `json:"owner_id" db:"owner_id"`
	AssigneeID  *int64    `json:"assignee_id,omitempty" db:"assignee_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// Owner is loaded by the service layer, not by the task query.
	Owner *User `json:"owner,omitempty" db:"-"`
}

// TaskInput is the form or JSON payload for creating a task.
type TaskInput struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Priority    string `json:"priority" form:"priority"`
	OwnerID     int64  `json:"owner_id" form:"owner_id"`
	AssigneeID  *int64 `json:"assignee_id,omitempty" form:"assignee_id"`
}

// TaskFilter narrows a task listing. Empty fields match everything.
type TaskFilter struct {
	Status  string `json:"status,omitempty" form:"status"`
	OwnerID int64  `json:"owner_id,omitempty" form:"owner_id"`
}
