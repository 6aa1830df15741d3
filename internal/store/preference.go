package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// PreferenceStore defines the interface for notification preference persistence.
// There is at most one row per user.
type PreferenceStore interface {
	// GetByUserID retrieves the preference row for a user.
	// Returns ErrPreferenceNotFound if the user has none yet.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreference, error)

	// CreateIfAbsent inserts p unless a row for p.UserID already exists.
	// It reports whether p was inserted. Concurrent callers for the same
	// user never produce a duplicate and never fail because of each other.
	CreateIfAbsent(ctx context.Context, p *domain.NotificationPreference) (bool, error)

	// Patch sets only the fields present in patch, stamps updated_at with
	// at, and returns the stored row. Fields the patch omits keep whatever
	// value the row holds at write time, so concurrent patches of different
	// fields never undo each other.
	// Returns ErrPreferenceNotFound if the row does not exist.
	Patch(
		ctx context.Context,
		userID uuid.UUID,
		patch domain.PreferencePatch,
		at time.Time,
	) (*domain.NotificationPreference, error)
}
