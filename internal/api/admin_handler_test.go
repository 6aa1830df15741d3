package api_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/api"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/mailqueue"
	"github.com/phrazzld/tasknotify/internal/reminder"
	"github.com/phrazzld/tasknotify/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminHandler_RequiresAdmin(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	for _, path := range []string{"/admin/email/drain", "/admin/email/verify", "/admin/reminders/scan"} {
		rec := e.do(t, http.MethodPost, path, nil, claimsFor(uuid.New(), "member"))
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		rec = e.do(t, http.MethodPost, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.Zero(t, e.scanner.calls)
}

func TestAdminHandler_DrainEmail(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := claimsFor(uuid.New(), auth.RoleAdmin)
	e.queue.drain = mailqueue.DrainResult{Claimed: 3, Sent: 2, Failed: 1}

	rec := e.do(t, http.MethodPost, "/admin/email/drain?batch=25", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[mailqueue.DrainResult](t, rec)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 25, e.queue.batch)

	rec = e.do(t, http.MethodPost, "/admin/email/drain?batch=x", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.queue.drainErr = errors.New("database unavailable")
	rec = e.do(t, http.MethodPost, "/admin/email/drain", nil, admin)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "database unavailable")
}

func TestAdminHandler_VerifyEmail(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := claimsFor(uuid.New(), auth.RoleAdmin)

	rec := e.do(t, http.MethodPost, "/admin/email/verify", nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	e.queue.verifyErr = mailqueue.ErrNotConfigured
	rec = e.do(t, http.MethodPost, "/admin/email/verify", nil, admin)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Email delivery is not configured", errorMessage(t, rec))

	e.queue.verifyErr = errors.New("535 authentication failed for secret-user")
	rec = e.do(t, http.MethodPost, "/admin/email/verify", nil, admin)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-user")
}

func TestAdminHandler_ListEmailJobs(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := claimsFor(uuid.New(), auth.RoleAdmin)

	job, err := domain.NewEmailJob("a@example.com", "A", "Hello", "<p>hi</p>", "hi", nil)
	require.NoError(t, err)
	e.queue.jobs = []*domain.EmailJob{job}

	rec := e.do(t, http.MethodGet, "/admin/email/jobs?status=pending&limit=10", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[api.EmailJobListResponse](t, rec)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "a@example.com", body.Jobs[0].ToEmail)
	assert.Empty(t, body.Jobs[0].HTMLBody, "bodies are not listed")
	assert.Equal(t, 1, body.Stats[domain.EmailStatusPending])
	assert.Equal(t, domain.EmailStatusPending, e.queue.filter.Status)
	assert.Equal(t, 10, e.queue.filter.Limit)

	rec = e.do(t, http.MethodGet, "/admin/email/jobs?status=bounced", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandler_ScanReminders(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	e.scanner.result = reminder.ScanResult{Users: 4, DueSoon: 2, Overdue: 1}

	rec := e.do(t, http.MethodPost, "/admin/reminders/scan", nil, claimsFor(uuid.New(), auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[reminder.ScanResult](t, rec)
	assert.Equal(t, 2, result.DueSoon)
	assert.Equal(t, 1, result.Overdue)
	assert.Equal(t, 1, e.scanner.calls)
}
