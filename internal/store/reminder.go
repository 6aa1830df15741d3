package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// ReminderStore persists the dedupe markers of the due-date scan. The key
// (task, user, reminder type, reminder date) is unique.
type ReminderStore interface {
	// Claim inserts r unless a marker with the same key exists and reports
	// whether this call inserted it. Exactly one of any number of concurrent
	// callers with the same key observes true.
	Claim(ctx context.Context, r *domain.DueDateReminder) (bool, error)

	// Release deletes the marker with r's key so a later scan can retry.
	Release(ctx context.Context, r *domain.DueDateReminder) error

	// Exists reports whether a marker with the given key exists.
	Exists(
		ctx context.Context,
		taskID, userID uuid.UUID,
		reminderType domain.ReminderType,
		reminderDate string,
	) (bool, error)
}
