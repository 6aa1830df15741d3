package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/platform/smtp"
	"github.com/phrazzld/tasknotify/internal/redact"
	"github.com/phrazzld/tasknotify/internal/store"
)

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultBatchSize     = 10
	DefaultStuckClaimAge = 15 * time.Minute
	DefaultSendTimeout   = 30 * time.Second
	maxLastErrorLength   = 500
)

// ErrNotConfigured is returned by operations that need a transport when
// email delivery is disabled or unconfigured.
var ErrNotConfigured = errors.New("email delivery is not configured")

// Transport delivers one message. Implementations must honor ctx and give
// up after msg.Timeout, measured from when delivery actually starts.
type Transport interface {
	Send(ctx context.Context, msg smtp.Message) error
	Verify(ctx context.Context) error
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	// NotConfigured is set when the drain was skipped for lack of a transport.
	NotConfigured bool `json:"notConfigured,omitempty"`
	// Released counts stale sending claims returned to the queue.
	Released int64 `json:"released"`
	// Claimed counts jobs this drain took ownership of.
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	// Failed counts failed attempts; Exhausted the subset that reached the
	// attempt cap and will not be retried.
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
	// Skipped counts jobs another drain claimed first.
	Skipped int `json:"skipped"`
	// Errors counts jobs whose state could not be read or written.
	Errors int `json:"errors"`
}

// Queue is the email delivery queue.
type Queue struct {
	jobs   store.EmailJobStore
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	cfg       config.EmailConfig
	transport Transport
}

// NewQueue creates a Queue. transport may be nil, in which case drains are
// no-ops until Reconfigure supplies one.
func NewQueue(
	jobs store.EmailJobStore,
	cfg config.EmailConfig,
	transport Transport,
	logger *slog.Logger,
) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:      jobs,
		cfg:       cfg,
		transport: transport,
		logger:    logger.With("component", "email_queue"),
		now:       time.Now,
	}
}

// Reconfigure swaps in new settings and transport. Drains already running
// finish with the transport they started with.
func (q *Queue) Reconfigure(cfg config.EmailConfig, transport Transport) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cfg = cfg
	q.transport = transport
	q.logger.Info("email delivery reconfigured",
		"enabled", cfg.Enabled,
		"configured", cfg.Configured() && transport != nil)
}

func (q *Queue) snapshot() (config.EmailConfig, Transport) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.cfg, q.transport
}

// Configured reports whether drains will attempt delivery.
func (q *Queue) Configured() bool {
	cfg, transport := q.snapshot()
	return cfg.Configured() && transport != nil
}

// Enqueue stores job as a new pending job with zero attempts.
func (q *Queue) Enqueue(ctx context.Context, job *domain.EmailJob) error {
	return q.enqueue(ctx, q.jobs, job)
}

// EnqueueTx is Enqueue inside the caller's transaction.
func (q *Queue) EnqueueTx(ctx context.Context, tx *sqlx.Tx, job *domain.EmailJob) error {
	return q.enqueue(ctx, q.jobs.WithTx(tx), job)
}

func (q *Queue) enqueue(ctx context.Context, jobs store.EmailJobStore, job *domain.EmailJob) error {
	job.Status = domain.EmailStatusPending
	job.Attempts = 0
	job.LastError = ""
	job.ClaimToken = nil
	job.ClaimedAt = nil
	job.SentAt = nil
	if err := jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	q.logger.Debug("email enqueued",
		"job_id", job.ID,
		"subject", job.Subject)
	return nil
}

// Verify checks that the configured transport is reachable.
func (q *Queue) Verify(ctx context.Context) error {
	cfg, transport := q.snapshot()
	if !cfg.Configured() || transport == nil {
		return ErrNotConfigured
	}
	return transport.Verify(ctx)
}

// Drain delivers up to batchSize claimable jobs, oldest first. A batchSize
// of zero or less uses the configured batch size. Individual job failures
// are recorded on the job and never abort the drain; the returned error is
// reserved for failures to read the queue itself.
func (q *Queue) Drain(ctx context.Context, batchSize int) (DrainResult, error) {
	cfg, transport := q.snapshot()
	var result DrainResult

	if !cfg.Configured() || transport == nil {
		q.logger.Debug("email delivery not configured, drain skipped")
		result.NotConfigured = true
		return result, nil
	}

	if batchSize <= 0 {
		batchSize = cfg.BatchSize
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	stuckAge := cfg.StuckClaimAge
	if stuckAge <= 0 {
		stuckAge = DefaultStuckClaimAge
	}
	released, err := q.jobs.ReleaseStale(ctx, q.now().Add(-stuckAge))
	if err != nil {
		q.logger.Error("failed to release stale email claims", "error", err)
	} else if released > 0 {
		q.logger.Warn("released stale email claims", "count", released)
		result.Released = released
	}

	jobs, err := q.jobs.ListClaimable(ctx, batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list pending emails: %w", err)
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		q.process(ctx, cfg, transport, job, &result)
	}

	if result.Claimed > 0 || result.Released > 0 {
		q.logger.Info("email drain finished",
			"claimed", result.Claimed,
			"sent", result.Sent,
			"failed", result.Failed,
			"exhausted", result.Exhausted,
			"skipped", result.Skipped)
	}
	return result, nil
}

func (q *Queue) process(
	ctx context.Context,
	cfg config.EmailConfig,
	transport Transport,
	job *domain.EmailJob,
	result *DrainResult,
) {
	log := q.logger.With("job_id", job.ID)

	token := uuid.New()
	claimed, err := q.jobs.Claim(ctx, job.ID, token, q.now())
	if err != nil {
		log.Error("failed to claim email job", "error", err)
		result.Errors++
		return
	}
	if !claimed {
		result.Skipped++
		return
	}
	result.Claimed++

	sendErr := q.send(ctx, cfg, transport, job)
	if sendErr == nil {
		q.recordSent(ctx, log, job, token, result)
		return
	}
	q.recordFailure(ctx, log, job, token, sendErr, result)
}

func (q *Queue) send(ctx context.Context, cfg config.EmailConfig, transport Transport, job *domain.EmailJob) error {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return transport.Send(ctx, smtp.Message{
		ToEmail: job.ToEmail,
		ToName:  job.ToName,
		Subject: job.Subject,
		HTML:    job.HTMLBody,
		Text:    job.TextBody,
		Timeout: timeout,
	})
}

func (q *Queue) recordSent(
	ctx context.Context,
	log *slog.Logger,
	job *domain.EmailJob,
	token uuid.UUID,
	result *DrainResult,
) {
	result.Sent++
	now := q.now()
	if err := q.jobs.MarkSent(ctx, job.ID, token, now); err != nil {
		if errors.Is(err, store.ErrClaimLost) {
			log.Warn("email delivered after its claim expired")
		} else {
			log.Error("failed to mark email sent", "error", err)
			result.Errors++
		}
	}
	q.appendLog(ctx, log, job, domain.EmailStatusSent, "", now)
	log.Debug("email sent")
}

func (q *Queue) recordFailure(
	ctx context.Context,
	log *slog.Logger,
	job *domain.EmailJob,
	token uuid.UUID,
	sendErr error,
	result *DrainResult,
) {
	result.Failed++
	lastError := redact.Limit(sendErr, maxLastErrorLength)

	attempts, status, err := q.jobs.MarkFailed(ctx, job.ID, token, lastError)
	if err != nil {
		if errors.Is(err, store.ErrClaimLost) {
			log.Warn("email failure recorded after its claim expired", "error", lastError)
		} else {
			log.Error("failed to record email failure", "error", err)
			result.Errors++
		}
		q.appendLog(ctx, log, job, domain.EmailStatusFailed, lastError, q.now())
		return
	}
	if status == domain.EmailStatusFailed {
		result.Exhausted++
	}
	q.appendLog(ctx, log, job, domain.EmailStatusFailed, lastError, q.now())

	if status == domain.EmailStatusFailed {
		log.Error("email permanently failed",
			"attempts", attempts,
			"error", lastError)
	} else {
		log.Warn("email delivery failed, will retry",
			"attempts", attempts,
			"error", lastError)
	}
}

func (q *Queue) appendLog(
	ctx context.Context,
	log *slog.Logger,
	job *domain.EmailJob,
	status domain.EmailStatus,
	errText string,
	at time.Time,
) {
	entry := &domain.EmailLogEntry{
		ID:        uuid.New(),
		JobID:     job.ID,
		Recipient: job.ToEmail,
		Subject:   job.Subject,
		Status:    status,
		Error:     errText,
		CreatedAt: at.UTC(),
	}
	if err := q.jobs.AppendLog(ctx, entry); err != nil {
		log.Error("failed to append email log", "error", err)
	}
}

// List returns queued jobs for administrative display.
func (q *Queue) List(ctx context.Context, filter store.EmailJobFilter) ([]*domain.EmailJob, error) {
	return q.jobs.List(ctx, filter)
}

// Stats returns the number of jobs in each status.
func (q *Queue) Stats(ctx context.Context) (map[domain.EmailStatus]int, error) {
	return q.jobs.CountByStatus(ctx)
}

// Logs returns the delivery attempts recorded for a job.
func (q *Queue) Logs(ctx context.Context, jobID uuid.UUID) ([]*domain.EmailLogEntry, error) {
	return q.jobs.ListLogs(ctx, jobID)
}
