package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/api/shared"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// PreferenceService reads and updates a user's notification preferences.
type PreferenceService interface {
	Resolve(ctx context.Context, userID uuid.UUID) (domain.NotificationPreference, error)
	Update(ctx context.Context, userID uuid.UUID, patch domain.PreferencePatch) (domain.NotificationPreference, error)
}

// PreferenceHandler serves the caller's notification preferences.
type PreferenceHandler struct {
	prefs  PreferenceService
	logger *slog.Logger
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(prefs PreferenceService, logger *slog.Logger) *PreferenceHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PreferenceHandler")
	}
	return &PreferenceHandler{
		prefs:  prefs,
		logger: logger.With(slog.String("component", "preference_handler")),
	}
}

// Get handles GET /preferences. Users without a stored record get the
// defaults, which are persisted on first read.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	pref, err := h.prefs.Resolve(r.Context(), claims.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, pref)
}

// Update handles PATCH /preferences. Omitted fields keep their values.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var patch domain.PreferencePatch
	if !decodeAndValidate(w, r, &patch) {
		return
	}
	pref, err := h.prefs.Update(r.Context(), claims.UserID, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, pref)
}
