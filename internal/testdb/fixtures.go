package testdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/stretchr/testify/require"
)

// CreateUser inserts an active user. An empty email is derived from name.
func CreateUser(t *testing.T, db *sqlx.DB, name, email, role string) *domain.User {
	t.Helper()

	if email == "" {
		email = fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8])
	}
	if role == "" {
		role = "member"
	}
	u := &domain.User{ID: uuid.New(), Email: email, Name: name, Role: role, IsActive: true}

	_, err := db.NamedExecContext(context.Background(),
		`INSERT INTO users (id, email, name, role, is_active) VALUES (:id, :email, :name, :role, :is_active)`, u)
	require.NoError(t, err, "insert user fixture")
	return u
}

// TaskFixture describes a task row to insert. Zero values get defaults.
type TaskFixture struct {
	Title      string
	Status     string
	Priority   string
	DueDate    *time.Time
	AssigneeID *uuid.UUID
	CreatorID  *uuid.UUID
	WorkflowID *uuid.UUID
	Deleted    bool
}

// CreateTask inserts a task row from f.
func CreateTask(t *testing.T, db *sqlx.DB, f TaskFixture) *domain.Task {
	t.Helper()

	task := &domain.Task{
		ID:         uuid.New(),
		Title:      f.Title,
		Status:     f.Status,
		Priority:   f.Priority,
		AssigneeID: f.AssigneeID,
		CreatorID:  f.CreatorID,
		WorkflowID: f.WorkflowID,
	}
	if task.Title == "" {
		task.Title = "Task " + task.ID.String()[:8]
	}
	if task.Status == "" {
		task.Status = "pending"
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	if f.DueDate != nil {
		due := f.DueDate.UTC()
		task.DueDate = &due
	}
	if f.Deleted {
		now := time.Now().UTC()
		task.DeletedAt = &now
	}

	_, err := db.NamedExecContext(context.Background(),
		`INSERT INTO tasks (id, title, status, priority, due_date, assignee_id, creator_id, workflow_id, deleted_at)
		VALUES (:id, :title, :status, :priority, :due_date, :assignee_id, :creator_id, :workflow_id, :deleted_at)`,
		task)
	require.NoError(t, err, "insert task fixture")
	return task
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// UUIDPtr returns a pointer to id.
func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
