package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

const (
	userColumns = `id, email, name, role, is_active`
	taskColumns = `id, title, status, priority, due_date, assignee_id, creator_id, workflow_id, deleted_at`
)

// SQLUserStore implements the read-only store.UserStore interface.
type SQLUserStore struct {
	db store.DBTX
}

// NewSQLUserStore creates a new SQL implementation of the UserStore interface.
func NewSQLUserStore(db store.DBTX) *SQLUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &SQLUserStore{db: db}
}

// Ensure SQLUserStore implements store.UserStore interface
var _ store.UserStore = (*SQLUserStore)(nil)

// GetByID implements store.UserStore.GetByID
func (s *SQLUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindByEmail implements store.UserStore.FindByEmail
func (s *SQLUserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *SQLUserStore) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	if err := s.db.GetContext(ctx, &u, s.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, MapError(err)
	}
	return &u, nil
}

// FindByName implements store.UserStore.FindByName
func (s *SQLUserStore) FindByName(ctx context.Context, name string) ([]*domain.User, error) {
	var users []*domain.User
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE name = ? ORDER BY email`)
	if err := s.db.SelectContext(ctx, &users, query, name); err != nil {
		return nil, MapError(err)
	}
	return users, nil
}

// ListActive implements store.UserStore.ListActive
func (s *SQLUserStore) ListActive(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = TRUE ORDER BY email`
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, MapError(err)
	}
	return users, nil
}

// SQLTaskStore implements the read-only store.TaskStore interface.
type SQLTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLTaskStore creates a new SQL implementation of the TaskStore interface.
func NewSQLTaskStore(db store.DBTX, logger *slog.Logger) *SQLTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure SQLTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*SQLTaskStore)(nil)

// GetByID implements store.TaskStore.GetByID
func (s *SQLTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var t domain.Task
	query := s.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)
	if err := s.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return &t, nil
}

// ListOpenDueForAssignee implements store.TaskStore.ListOpenDueForAssignee
func (s *SQLTaskStore) ListOpenDueForAssignee(
	ctx context.Context,
	userID uuid.UUID,
	terminalStatuses []string,
) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE assignee_id = ? AND deleted_at IS NULL AND due_date IS NOT NULL`
	args := []any{userID}

	if len(terminalStatuses) > 0 {
		var err error
		query, args, err = sqlx.In(query+` AND status NOT IN (?)`, userID, terminalStatuses)
		if err != nil {
			return nil, err
		}
	}
	query += ` ORDER BY due_date ASC`

	var tasks []*domain.Task
	if err := s.db.SelectContext(ctx, &tasks, s.db.Rebind(query), args...); err != nil {
		s.logger.Error("failed to list due tasks",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return tasks, nil
}
