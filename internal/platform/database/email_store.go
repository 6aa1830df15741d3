package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

const emailJobColumns = `id, to_email, to_name, subject, html_body, text_body, status, attempts,
	last_error, notification_id, claim_token, claimed_at, created_at, sent_at`

const emailLogColumns = `id, job_id, recipient, subject, status, error, created_at`

// staleClaimError is recorded on jobs whose claim expired mid-send.
const staleClaimError = "delivery interrupted: claim expired"

// SQLEmailJobStore implements the store.EmailJobStore interface.
type SQLEmailJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLEmailJobStore creates a new SQL implementation of the EmailJobStore interface.
func NewSQLEmailJobStore(db store.DBTX, logger *slog.Logger) *SQLEmailJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLEmailJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "email_job_store")),
	}
}

// Ensure SQLEmailJobStore implements store.EmailJobStore interface
var _ store.EmailJobStore = (*SQLEmailJobStore)(nil)

// Create implements store.EmailJobStore.Create
func (s *SQLEmailJobStore) Create(ctx context.Context, job *domain.EmailJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `INSERT INTO email_jobs (` + emailJobColumns + `)
		VALUES (:id, :to_email, :to_name, :subject, :html_body, :text_body, :status, :attempts,
			:last_error, :notification_id, :claim_token, :claimed_at, :created_at, :sent_at)`
	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		s.logger.Error("failed to enqueue email job",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.EmailJobStore.GetByID
func (s *SQLEmailJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	var job domain.EmailJob
	query := s.db.Rebind(`SELECT ` + emailJobColumns + ` FROM email_jobs WHERE id = ?`)
	if err := s.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEmailJobNotFound
		}
		return nil, MapError(err)
	}
	normalizeEmailJob(&job)
	return &job, nil
}

// List implements store.EmailJobStore.List
func (s *SQLEmailJobStore) List(ctx context.Context, filter store.EmailJobFilter) ([]*domain.EmailJob, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.selectJobs(ctx, s.db.Rebind(query), args...)
}

// ListClaimable implements store.EmailJobStore.ListClaimable
func (s *SQLEmailJobStore) ListClaimable(ctx context.Context, limit int) ([]*domain.EmailJob, error) {
	query := s.db.Rebind(`SELECT ` + emailJobColumns + ` FROM email_jobs
		WHERE status = ? AND attempts < ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`)
	return s.selectJobs(ctx, query, domain.EmailStatusPending, domain.MaxEmailAttempts, limit)
}

func (s *SQLEmailJobStore) selectJobs(ctx context.Context, query string, args ...any) ([]*domain.EmailJob, error) {
	var jobs []*domain.EmailJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, MapError(err)
	}
	for _, job := range jobs {
		normalizeEmailJob(job)
	}
	return jobs, nil
}

// Claim implements store.EmailJobStore.Claim
func (s *SQLEmailJobStore) Claim(ctx context.Context, id, token uuid.UUID, at time.Time) (bool, error) {
	query := s.db.Rebind(`UPDATE email_jobs
		SET status = ?, claim_token = ?, claimed_at = ?
		WHERE id = ? AND status = ? AND attempts < ?`)
	result, err := s.db.ExecContext(ctx, query,
		domain.EmailStatusSending, token, at.UTC(), id, domain.EmailStatusPending,
		domain.MaxEmailAttempts)
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkSent implements store.EmailJobStore.MarkSent
func (s *SQLEmailJobStore) MarkSent(ctx context.Context, id, token uuid.UUID, at time.Time) error {
	query := s.db.Rebind(`UPDATE email_jobs
		SET status = ?, sent_at = ?, last_error = '', claim_token = NULL, claimed_at = NULL
		WHERE id = ? AND claim_token = ? AND status = ?`)
	result, err := s.db.ExecContext(ctx, query,
		domain.EmailStatusSent, at.UTC(), id, token, domain.EmailStatusSending)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrClaimLost)
}

// MarkFailed implements store.EmailJobStore.MarkFailed
func (s *SQLEmailJobStore) MarkFailed(
	ctx context.Context,
	id, token uuid.UUID,
	lastError string,
) (int, domain.EmailStatus, error) {
	query := s.db.Rebind(`UPDATE email_jobs
		SET status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
			attempts = attempts + 1,
			last_error = ?,
			claim_token = NULL,
			claimed_at = NULL
		WHERE id = ? AND claim_token = ? AND status = ?
		RETURNING attempts, status`)

	var row struct {
		Attempts int                `db:"attempts"`
		Status   domain.EmailStatus `db:"status"`
	}
	err := s.db.GetContext(ctx, &row, query,
		domain.MaxEmailAttempts, domain.EmailStatusFailed, domain.EmailStatusPending,
		lastError, id, token, domain.EmailStatusSending)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", store.ErrClaimLost
	}
	if err != nil {
		return 0, "", MapError(err)
	}
	return row.Attempts, row.Status, nil
}

// ReleaseStale implements store.EmailJobStore.ReleaseStale. An interrupted
// send counts as an attempt, so a job that keeps crashing its sender still
// reaches the failed state.
func (s *SQLEmailJobStore) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.db.Rebind(`UPDATE email_jobs
		SET status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
			attempts = attempts + 1,
			last_error = ?,
			claim_token = NULL,
			claimed_at = NULL
		WHERE status = ? AND claimed_at < ?`)
	result, err := s.db.ExecContext(ctx, query,
		domain.MaxEmailAttempts, domain.EmailStatusFailed, domain.EmailStatusPending,
		staleClaimError, domain.EmailStatusSending, cutoff.UTC())
	if err != nil {
		return 0, MapError(err)
	}
	return result.RowsAffected()
}

// CountByStatus implements store.EmailJobStore.CountByStatus
func (s *SQLEmailJobStore) CountByStatus(ctx context.Context) (map[domain.EmailStatus]int, error) {
	var rows []struct {
		Status domain.EmailStatus `db:"status"`
		Count  int                `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM email_jobs GROUP BY status`); err != nil {
		return nil, MapError(err)
	}
	counts := make(map[domain.EmailStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// AppendLog implements store.EmailJobStore.AppendLog
func (s *SQLEmailJobStore) AppendLog(ctx context.Context, entry *domain.EmailLogEntry) error {
	query := `INSERT INTO email_logs (` + emailLogColumns + `)
		VALUES (:id, :job_id, :recipient, :subject, :status, :error, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		return MapError(err)
	}
	return nil
}

// ListLogs implements store.EmailJobStore.ListLogs
func (s *SQLEmailJobStore) ListLogs(ctx context.Context, jobID uuid.UUID) ([]*domain.EmailLogEntry, error) {
	var entries []*domain.EmailLogEntry
	query := s.db.Rebind(`SELECT ` + emailLogColumns + ` FROM email_logs WHERE job_id = ? ORDER BY created_at ASC, id ASC`)
	if err := s.db.SelectContext(ctx, &entries, query, jobID); err != nil {
		return nil, MapError(err)
	}
	for _, e := range entries {
		e.CreatedAt = e.CreatedAt.UTC()
	}
	return entries, nil
}

// WithTx implements store.EmailJobStore.WithTx
func (s *SQLEmailJobStore) WithTx(tx *sqlx.Tx) store.EmailJobStore {
	return &SQLEmailJobStore{db: tx, logger: s.logger}
}

func normalizeEmailJob(job *domain.EmailJob) {
	job.CreatedAt = job.CreatedAt.UTC()
	if job.SentAt != nil {
		t := job.SentAt.UTC()
		job.SentAt = &t
	}
	if job.ClaimedAt != nil {
		t := job.ClaimedAt.UTC()
		job.ClaimedAt = &t
	}
}
