package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// UserStore gives read-only access to the users the engine addresses.
type UserStore interface {
	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// ListActive returns all active users.
	ListActive(ctx context.Context) ([]*domain.User, error)

	// FindByEmail returns the user with exactly this email address.
	// Returns ErrUserNotFound if there is none.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByName returns the users whose name equals name exactly.
	FindByName(ctx context.Context, name string) ([]*domain.User, error)
}

// TaskStore gives read-only access to tasks.
type TaskStore interface {
	// GetByID retrieves a task by ID, including soft-deleted tasks.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListOpenDueForAssignee returns the user's assigned, non-deleted tasks
	// that have a due date and whose status is not in terminalStatuses.
	ListOpenDueForAssignee(
		ctx context.Context,
		userID uuid.UUID,
		terminalStatuses []string,
	) ([]*domain.Task, error)
}
