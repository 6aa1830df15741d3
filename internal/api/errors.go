package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/tasknotify/internal/api/shared"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/mailqueue"
	"github.com/phrazzld/tasknotify/internal/store"
	"github.com/phrazzld/tasknotify/internal/workflow"
)

// MapErrorToStatusCode maps service errors to HTTP status codes without
// exposing internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case store.IsNotFoundError(err):
		return http.StatusNotFound
	case store.IsDuplicateError(err),
		errors.Is(err, workflow.ErrCannotDeleteDefault):
		return http.StatusConflict
	case errors.Is(err, mailqueue.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.As(err, &verr):
		if verr.Field == "" {
			return "Invalid request: " + verr.Message
		}
		return fmt.Sprintf("Invalid %s: %s", verr.Field, verr.Message)
	case errors.Is(err, domain.ErrValidation):
		return "Validation error"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Operation not permitted"
	case errors.Is(err, store.ErrWorkflowNotFound):
		return "Workflow not found"
	case errors.Is(err, store.ErrNotificationNotFound):
		return "Notification not found"
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrEmailJobNotFound):
		return "Email job not found"
	case store.IsNotFoundError(err):
		return "Not found"
	case errors.Is(err, workflow.ErrCannotDeleteDefault):
		return "The default workflow cannot be deleted"
	case store.IsDuplicateError(err):
		return "Already exists"
	case errors.Is(err, mailqueue.ErrNotConfigured):
		return "Email delivery is not configured"
	default:
		return "An unexpected error occurred"
	}
}

// handleServiceError writes the error response for a failed service call.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
