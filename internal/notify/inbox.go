package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

// Inbox is a user's view of their in-app notifications. Every operation is
// scoped to the owning user.
type Inbox struct {
	notifications store.NotificationStore
	logger        *slog.Logger
	now           func() time.Time
}

// NewInbox creates an Inbox.
func NewInbox(notifications store.NotificationStore, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		notifications: notifications,
		logger:        logger.With("component", "inbox"),
		now:           time.Now,
	}
}

// List returns the user's notifications, newest first.
func (i *Inbox) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.NotificationFilter,
) ([]*domain.Notification, error) {
	list, err := i.notifications.ListForUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// UnreadCount returns how many of the user's notifications are unread.
func (i *Inbox) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := i.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one notification read.
func (i *Inbox) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := i.notifications.MarkRead(ctx, id, userID, i.now().UTC()); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (i *Inbox) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := i.notifications.MarkAllRead(ctx, userID, i.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	i.logger.Debug("marked notifications read", "user_id", userID, "count", n)
	return n, nil
}

// Delete removes one notification.
func (i *Inbox) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := i.notifications.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}
