package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/mailqueue"
	"github.com/phrazzld/tasknotify/internal/store"
	"github.com/phrazzld/tasknotify/internal/workflow"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", domain.NewValidationError("to", "is required"), http.StatusBadRequest, "Invalid to: is required"},
		{"wrapped not found", fmt.Errorf("load: %w", store.ErrTaskNotFound), http.StatusNotFound, "Task not found"},
		{"workflow not found", store.ErrWorkflowNotFound, http.StatusNotFound, "Workflow not found"},
		{"default delete", workflow.ErrCannotDeleteDefault, http.StatusConflict, "The default workflow cannot be deleted"},
		{"duplicate", store.ErrDuplicate, http.StatusConflict, "Already exists"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusForbidden, "Operation not permitted"},
		{"not configured", mailqueue.ErrNotConfigured, http.StatusServiceUnavailable, "Email delivery is not configured"},
		{"joined validation", errors.Join(errors.New("other"), domain.NewValidationError("x", "bad")), http.StatusBadRequest, "Invalid x: bad"},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.status, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.message, GetSafeErrorMessage(tc.err))
		})
	}
}
