// Package preference resolves per-user notification preferences, creating
// the fixed default set the first time a user's preferences are read.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

// Resolver maps users to their notification preferences.
type Resolver struct {
	prefs    store.PreferenceStore
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver creates a Resolver backed by prefs.
func NewResolver(prefs store.PreferenceStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		prefs:    prefs,
		validate: validator.New(),
		logger:   logger.With("component", "preference_resolver"),
		now:      time.Now,
	}
}

// Resolve returns the user's preferences, inserting the defaults if the
// user has none. Concurrent first reads for the same user all observe the
// same single row.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (domain.NotificationPreference, error) {
	p, err := r.prefs.GetByUserID(ctx, userID)
	if err == nil {
		return *p, nil
	}
	if !errors.Is(err, store.ErrPreferenceNotFound) {
		return domain.NotificationPreference{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	defaults := domain.DefaultPreference(userID)
	inserted, err := r.prefs.CreateIfAbsent(ctx, &defaults)
	if err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("failed to create default preferences: %w", err)
	}
	if inserted {
		r.logger.Debug("created default preferences", "user_id", userID)
		return defaults, nil
	}

	// Another caller inserted first; theirs is the row.
	p, err = r.prefs.GetByUserID(ctx, userID)
	if err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	return *p, nil
}

// Update applies a partial update to the user's preferences and returns the
// result. Only fields present in patch change.
func (r *Resolver) Update(
	ctx context.Context,
	userID uuid.UUID,
	patch domain.PreferencePatch,
) (domain.NotificationPreference, error) {
	if err := r.validate.Struct(patch); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.NotificationPreference{}, domain.NewValidationError(
				verrs[0].Field(), fmt.Sprintf("failed on '%s' validation", verrs[0].Tag()))
		}
		return domain.NotificationPreference{}, domain.NewValidationError("", err.Error())
	}

	current, err := r.Resolve(ctx, userID)
	if err != nil {
		return domain.NotificationPreference{}, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	updated, err := r.prefs.Patch(ctx, userID, patch, r.now())
	if err != nil {
		r.logger.Error("failed to update preferences",
			"error", err,
			"user_id", userID)
		return domain.NotificationPreference{}, fmt.Errorf("failed to update preferences: %w", err)
	}

	r.logger.Info("preferences updated",
		"user_id", userID,
		"fields", len(patch.Changes()))
	return *updated, nil
}
