package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

// SQLReminderStore implements the store.ReminderStore interface.
type SQLReminderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLReminderStore creates a new SQL implementation of the ReminderStore interface.
func NewSQLReminderStore(db store.DBTX, logger *slog.Logger) *SQLReminderStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLReminderStore{
		db:     db,
		logger: logger.With(slog.String("component", "reminder_store")),
	}
}

// Ensure SQLReminderStore implements store.ReminderStore interface
var _ store.ReminderStore = (*SQLReminderStore)(nil)

// Claim implements store.ReminderStore.Claim. The unique key makes the
// insert the arbiter: a conflicting row means another scan got there first.
func (s *SQLReminderStore) Claim(ctx context.Context, r *domain.DueDateReminder) (bool, error) {
	query := `INSERT INTO due_date_reminders (id, task_id, user_id, reminder_type, reminder_date, created_at)
		VALUES (:id, :task_id, :user_id, :reminder_type, :reminder_date, :created_at)
		ON CONFLICT (task_id, user_id, reminder_type, reminder_date) DO NOTHING`
	result, err := s.db.NamedExecContext(ctx, query, r)
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// Release implements store.ReminderStore.Release
func (s *SQLReminderStore) Release(ctx context.Context, r *domain.DueDateReminder) error {
	query := s.db.Rebind(`DELETE FROM due_date_reminders
		WHERE task_id = ? AND user_id = ? AND reminder_type = ? AND reminder_date = ?`)
	_, err := s.db.ExecContext(ctx, query, r.TaskID, r.UserID, r.ReminderType, r.ReminderDate)
	return MapError(err)
}

// Exists implements store.ReminderStore.Exists
func (s *SQLReminderStore) Exists(
	ctx context.Context,
	taskID, userID uuid.UUID,
	reminderType domain.ReminderType,
	reminderDate string,
) (bool, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM due_date_reminders
		WHERE task_id = ? AND user_id = ? AND reminder_type = ? AND reminder_date = ?`)
	if err := s.db.GetContext(ctx, &n, query, taskID, userID, reminderType, reminderDate); err != nil {
		return false, MapError(err)
	}
	return n > 0, nil
}
