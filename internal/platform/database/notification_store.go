package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

const notificationColumns = `id, user_id, type, title, content, task_id, actor_id, metadata, is_read, created_at, read_at`

// Listing bounds for ListForUser.
const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// SQLNotificationStore implements the store.NotificationStore interface.
type SQLNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLNotificationStore creates a new SQL implementation of the NotificationStore interface.
func NewSQLNotificationStore(db store.DBTX, logger *slog.Logger) *SQLNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// Ensure SQLNotificationStore implements store.NotificationStore interface
var _ store.NotificationStore = (*SQLNotificationStore)(nil)

// Create implements store.NotificationStore.Create
func (s *SQLNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES (:id, :user_id, :type, :title, :content, :task_id, :actor_id, :metadata, :is_read, :created_at, :read_at)`
	if _, err := s.db.NamedExecContext(ctx, query, n); err != nil {
		s.logger.Error("failed to create notification",
			slog.String("notification_id", n.ID.String()),
			slog.String("user_id", n.UserID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.NotificationStore.GetByID
func (s *SQLNotificationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var n domain.Notification
	query := s.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`)
	if err := s.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, MapError(err)
	}
	normalizeNotification(&n)
	return &n, nil
}

// ListForUser implements store.NotificationStore.ListForUser
func (s *SQLNotificationStore) ListForUser(
	ctx context.Context,
	userID uuid.UUID,
	filter store.NotificationFilter,
) ([]*domain.Notification, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if filter.UnreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	var out []*domain.Notification
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), userID, limit, offset); err != nil {
		return nil, MapError(err)
	}
	for _, n := range out {
		normalizeNotification(n)
	}
	return out, nil
}

// CountUnread implements store.NotificationStore.CountUnread
func (s *SQLNotificationStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`)
	if err := s.db.GetContext(ctx, &n, query, userID); err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// MarkRead implements store.NotificationStore.MarkRead
func (s *SQLNotificationStore) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	query := s.db.Rebind(`UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`)
	result, err := s.db.ExecContext(ctx, query, at.UTC(), id, userID)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrNotificationNotFound)
}

// MarkAllRead implements store.NotificationStore.MarkAllRead
func (s *SQLNotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	query := s.db.Rebind(`UPDATE notifications SET is_read = TRUE, read_at = ?
		WHERE user_id = ? AND is_read = FALSE`)
	result, err := s.db.ExecContext(ctx, query, at.UTC(), userID)
	if err != nil {
		return 0, MapError(err)
	}
	return result.RowsAffected()
}

// Delete implements store.NotificationStore.Delete
func (s *SQLNotificationStore) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := s.db.Rebind(`DELETE FROM notifications WHERE id = ? AND user_id = ?`)
	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrNotificationNotFound)
}

// WithTx implements store.NotificationStore.WithTx
func (s *SQLNotificationStore) WithTx(tx *sqlx.Tx) store.NotificationStore {
	return &SQLNotificationStore{db: tx, logger: s.logger}
}

func normalizeNotification(n *domain.Notification) {
	n.CreatedAt = n.CreatedAt.UTC()
	if n.ReadAt != nil {
		t := n.ReadAt.UTC()
		n.ReadAt = &t
	}
}
