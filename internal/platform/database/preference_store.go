package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

const preferenceColumns = `id, user_id,
	task_assigned_in_app, task_assigned_email,
	mentioned_in_app, mentioned_email,
	status_changed_in_app, status_changed_email,
	due_soon_in_app, due_soon_email,
	overdue_in_app, overdue_email,
	due_soon_days, created_at, updated_at`

// SQLPreferenceStore implements the store.PreferenceStore interface.
type SQLPreferenceStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLPreferenceStore creates a new SQL implementation of the PreferenceStore interface.
func NewSQLPreferenceStore(db store.DBTX, logger *slog.Logger) *SQLPreferenceStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLPreferenceStore{
		db:     db,
		logger: logger.With(slog.String("component", "preference_store")),
	}
}

// Ensure SQLPreferenceStore implements store.PreferenceStore interface
var _ store.PreferenceStore = (*SQLPreferenceStore)(nil)

// GetByUserID implements store.PreferenceStore.GetByUserID
func (s *SQLPreferenceStore) GetByUserID(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.NotificationPreference, error) {
	var p domain.NotificationPreference
	query := s.db.Rebind(`SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &p, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPreferenceNotFound
		}
		return nil, MapError(err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// CreateIfAbsent implements store.PreferenceStore.CreateIfAbsent
func (s *SQLPreferenceStore) CreateIfAbsent(ctx context.Context, p *domain.NotificationPreference) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `INSERT INTO notification_preferences (` + preferenceColumns + `)
		VALUES (:id, :user_id,
			:task_assigned_in_app, :task_assigned_email,
			:mentioned_in_app, :mentioned_email,
			:status_changed_in_app, :status_changed_email,
			:due_soon_in_app, :due_soon_email,
			:overdue_in_app, :overdue_email,
			:due_soon_days, :created_at, :updated_at)
		ON CONFLICT (user_id) DO NOTHING`
	result, err := s.db.NamedExecContext(ctx, query, p)
	if err != nil {
		s.logger.Error("failed to create preference",
			slog.String("user_id", p.UserID.String()),
			slog.String("error", err.Error()))
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// Patch implements store.PreferenceStore.Patch
func (s *SQLPreferenceStore) Patch(
	ctx context.Context,
	userID uuid.UUID,
	patch domain.PreferencePatch,
	at time.Time,
) (*domain.NotificationPreference, error) {
	changes := patch.Changes()
	sets := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+2)
	for _, c := range changes {
		sets = append(sets, c.Column+" = ?")
		args = append(args, c.Value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, at.UTC(), userID)

	query := s.db.Rebind(`UPDATE notification_preferences SET ` + strings.Join(sets, ", ") + `
		WHERE user_id = ?
		RETURNING ` + preferenceColumns)

	var p domain.NotificationPreference
	if err := s.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPreferenceNotFound
		}
		return nil, MapError(err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
