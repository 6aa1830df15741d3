package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasknotify/internal/api/shared"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/mailqueue"
	"github.com/phrazzld/tasknotify/internal/reminder"
	"github.com/phrazzld/tasknotify/internal/store"
)

// MaxEmailJobLimit caps GET /admin/email/jobs.
const MaxEmailJobLimit = 500

// EmailQueue is the subset of the email queue exposed to administrators.
type EmailQueue interface {
	Drain(ctx context.Context, batchSize int) (mailqueue.DrainResult, error)
	Verify(ctx context.Context) error
	List(ctx context.Context, filter store.EmailJobFilter) ([]*domain.EmailJob, error)
	Stats(ctx context.Context) (map[domain.EmailStatus]int, error)
}

// ReminderScanner runs one due-date reminder scan.
type ReminderScanner interface {
	ScanDueSoonAndOverdue(ctx context.Context) (reminder.ScanResult, error)
}

// AdminHandler exposes manual triggers for background jobs.
type AdminHandler struct {
	queue   EmailQueue
	scanner ReminderScanner
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(queue EmailQueue, scanner ReminderScanner, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AdminHandler")
	}
	return &AdminHandler{
		queue:   queue,
		scanner: scanner,
		logger:  logger.With(slog.String("component", "admin_handler")),
	}
}

// DrainEmail handles POST /admin/email/drain. Query parameter batch
// overrides the configured batch size.
func (h *AdminHandler) DrainEmail(w http.ResponseWriter, r *http.Request) {
	batch, err := queryInt(r, "batch", 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	result, err := h.queue.Drain(r.Context(), batch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// VerifyEmail handles POST /admin/email/verify.
func (h *AdminHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Verify(r.Context()); err != nil {
		status := MapErrorToStatusCode(err)
		message := GetSafeErrorMessage(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
			message = "Mail server verification failed"
		}
		shared.RespondWithErrorAndLog(w, r, status, message, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEmailJobs handles GET /admin/email/jobs. Query parameters: status
// and limit.
func (h *AdminHandler) ListEmailJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.EmailStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		handleServiceError(w, r, domain.NewValidationError("status", "invalid email status"))
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if limit == 0 || limit > MaxEmailJobLimit {
		limit = MaxEmailJobLimit
	}

	jobs, err := h.queue.List(r.Context(), store.EmailJobFilter{Status: status, Limit: limit})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*domain.EmailJob{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, EmailJobListResponse{Jobs: jobs, Stats: stats})
}

// ScanReminders handles POST /admin/reminders/scan.
func (h *AdminHandler) ScanReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.ScanDueSoonAndOverdue(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}
