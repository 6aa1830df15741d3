package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationStore defines the interface for in-app notification persistence.
type NotificationStore interface {
	// Create saves a new notification.
	// Returns ErrInvalidEntity if the notification fails domain validation.
	Create(ctx context.Context, n *domain.Notification) error

	// GetByID retrieves a notification by its unique ID.
	// Returns ErrNotificationNotFound if the notification does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)

	// ListForUser returns a user's notifications, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID, filter NotificationFilter) ([]*domain.Notification, error)

	// CountUnread returns how many of a user's notifications are unread.
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)

	// MarkRead flags one of the user's notifications read and stamps ReadAt.
	// Marking an already read notification keeps its original ReadAt.
	// Returns ErrNotificationNotFound if the user owns no such notification.
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error

	// MarkAllRead flags every unread notification of the user and returns
	// the number changed.
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)

	// Delete removes one of the user's notifications.
	// Returns ErrNotificationNotFound if the user owns no such notification.
	Delete(ctx context.Context, id, userID uuid.UUID) error

	// WithTx returns a new NotificationStore instance that uses the provided transaction.
	WithTx(tx *sqlx.Tx) NotificationStore
}
