package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// EmailJobFilter narrows an administrative listing of email jobs.
// An empty Status matches every status.
type EmailJobFilter struct {
	Status domain.EmailStatus
	Limit  int
}

// EmailJobStore defines the interface for the outbound email queue and its
// delivery log.
//
// A drain claims a job by moving it from pending to sending under a fresh
// claim token. Only the holder of the current token can record the
// outcome, so two overlapping drains never both deliver the same job.
type EmailJobStore interface {
	// Create saves a new pending job.
	// Returns ErrInvalidEntity if the job fails domain validation.
	Create(ctx context.Context, job *domain.EmailJob) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrEmailJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error)

	// List returns jobs newest first.
	List(ctx context.Context, filter EmailJobFilter) ([]*domain.EmailJob, error)

	// ListClaimable returns up to limit pending jobs with attempts below
	// domain.MaxEmailAttempts, oldest first.
	ListClaimable(ctx context.Context, limit int) ([]*domain.EmailJob, error)

	// Claim moves a pending job to sending under token. It reports false
	// when the job is no longer pending.
	Claim(ctx context.Context, id, token uuid.UUID, at time.Time) (bool, error)

	// MarkSent records a successful delivery for the claim holder.
	// Returns ErrClaimLost if token no longer holds the job.
	MarkSent(ctx context.Context, id, token uuid.UUID, at time.Time) error

	// MarkFailed records a failed attempt for the claim holder. The attempt
	// count is incremented in place and the job becomes failed once it
	// reaches domain.MaxEmailAttempts, pending otherwise. It returns the
	// stored attempt count and status.
	// Returns ErrClaimLost if token no longer holds the job.
	MarkFailed(
		ctx context.Context,
		id, token uuid.UUID,
		lastError string,
	) (int, domain.EmailStatus, error)

	// ReleaseStale returns jobs claimed before cutoff to pending and reports
	// how many were released.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)

	// CountByStatus returns the number of jobs in each status.
	CountByStatus(ctx context.Context) (map[domain.EmailStatus]int, error)

	// AppendLog writes one delivery attempt record.
	AppendLog(ctx context.Context, entry *domain.EmailLogEntry) error

	// ListLogs returns the delivery attempt records of a job, oldest first.
	ListLogs(ctx context.Context, jobID uuid.UUID) ([]*domain.EmailLogEntry, error)

	// WithTx returns a new EmailJobStore instance that uses the provided transaction.
	WithTx(tx *sqlx.Tx) EmailJobStore
}
