package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the engine's read-only view of an account. Users are managed
// elsewhere; the engine only reads the fields it needs to address people.
type User struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Email    string    `json:"email" db:"email"`
	Name     string    `json:"name" db:"name"`
	Role     string    `json:"role" db:"role"`
	IsActive bool      `json:"isActive" db:"is_active"`
}

// DisplayName returns the name, falling back to the email address.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Task is the engine's read-only view of a task. The engine never writes
// task rows.
type Task struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Title      string     `json:"title" db:"title"`
	Status     string     `json:"status" db:"status"`
	Priority   string     `json:"priority" db:"priority"`
	DueDate    *time.Time `json:"dueDate,omitempty" db:"due_date"`
	AssigneeID *uuid.UUID `json:"assigneeId,omitempty" db:"assignee_id"`
	CreatorID  *uuid.UUID `json:"creatorId,omitempty" db:"creator_id"`
	WorkflowID *uuid.UUID `json:"workflowId,omitempty" db:"workflow_id"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// TaskSummary is the subset of a task rendered into notification emails.
type TaskSummary struct {
	ID       uuid.UUID
	Title    string
	Status   string
	Priority string
	DueDate  *time.Time
}

// Summary returns the email-facing summary of t.
func (t *Task) Summary() *TaskSummary {
	return &TaskSummary{
		ID:       t.ID,
		Title:    t.Title,
		Status:   t.Status,
		Priority: t.Priority,
		DueDate:  t.DueDate,
	}
}
