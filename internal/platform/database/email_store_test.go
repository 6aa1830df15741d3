package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/platform/database"
	"github.com/phrazzld/tasknotify/internal/store"
	"github.com/phrazzld/tasknotify/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEmailJob(t *testing.T, to string, createdAt time.Time) *domain.EmailJob {
	t.Helper()
	job, err := domain.NewEmailJob(to, "Recipient", "Subject", "<p>hi</p>", "hi", nil)
	require.NoError(t, err)
	job.CreatedAt = createdAt.UTC()
	return job
}

func TestSQLEmailJobStore_ClaimableOrder(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLEmailJobStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		job := mustEmailJob(t, "user@example.com", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Create(ctx, job))
		ids = append(ids, job.ID)
	}
	exhausted := mustEmailJob(t, "user@example.com", base.Add(-time.Minute))
	exhausted.Attempts = domain.MaxEmailAttempts
	require.NoError(t, s.Create(ctx, exhausted))

	jobs, err := s.ListClaimable(ctx, 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[0], jobs[0].ID)
	assert.Equal(t, ids[1], jobs[1].ID)
	assert.Equal(t, ids[2], jobs[2].ID)
}

func TestSQLEmailJobStore_ClaimIsExclusive(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLEmailJobStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	job := mustEmailJob(t, "user@example.com", time.Now())
	require.NoError(t, s.Create(ctx, job))

	tokenA, tokenB := uuid.New(), uuid.New()
	ok, err := s.Claim(ctx, job.ID, tokenA, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, job.ID, tokenB, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.MarkSent(ctx, job.ID, tokenB, time.Now()), store.ErrClaimLost)
	require.NoError(t, s.MarkSent(ctx, job.ID, tokenA, time.Now()))

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusSent, got.Status)
	assert.NotNil(t, got.SentAt)
	assert.Nil(t, got.ClaimToken)
}

func TestSQLEmailJobStore_MarkFailed(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLEmailJobStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	job := mustEmailJob(t, "user@example.com", time.Now())
	require.NoError(t, s.Create(ctx, job))

	token := uuid.New()
	ok, err := s.Claim(ctx, job.ID, token, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	attempts, status, err := s.MarkFailed(ctx, job.ID, token, "connection refused")
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, domain.EmailStatusPending, status)

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "connection refused", got.LastError)

	_, _, err = s.MarkFailed(ctx, job.ID, token, "again")
	assert.ErrorIs(t, err, store.ErrClaimLost, "token is cleared after recording an outcome")
}

func TestSQLEmailJobStore_MarkFailedReachesCap(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLEmailJobStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	job := mustEmailJob(t, "user@example.com", time.Now())
	require.NoError(t, s.Create(ctx, job))

	for want := 1; want <= domain.MaxEmailAttempts; want++ {
		token := uuid.New()
		ok, err := s.Claim(ctx, job.ID, token, time.Now())
		require.NoError(t, err)
		require.True(t, ok, "attempt %d", want)

		attempts, status, err := s.MarkFailed(ctx, job.ID, token, "451 busy")
		require.NoError(t, err)
		assert.Equal(t, want, attempts)
		if want < domain.MaxEmailAttempts {
			assert.Equal(t, domain.EmailStatusPending, status)
		} else {
			assert.Equal(t, domain.EmailStatusFailed, status)
		}
	}

	ok, err := s.Claim(ctx, job.ID, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "failed jobs cannot be claimed")
}

func TestSQLEmailJobStore_ReleaseStale(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLEmailJobStore(db, testdb.DiscardLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	stuck := mustEmailJob(t, "a@example.com", now.Add(-time.Hour))
	lastChance := mustEmailJob(t, "b@example.com", now.Add(-time.Hour))
	lastChance.Attempts = domain.MaxEmailAttempts - 1
	fresh := mustEmailJob(t, "c@example.com", now.Add(-time.Hour))
	for _, j := range []*domain.EmailJob{stuck, lastChance, fresh} {
		require.NoError(t, s.Create(ctx, j))
	}

	_, err := s.Claim(ctx, stuck.ID, uuid.New(), now.Add(-30*time.Minute))
	require.NoError(t, err)
	_, err = s.Claim(ctx, lastChance.ID, uuid.New(), now.Add(-30*time.Minute))
	require.NoError(t, err)
	_, err = s.Claim(ctx, fresh.ID, uuid.New(), now)
	require.NoError(t, err)

	released, err := s.ReleaseStale(ctx, now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	got, err := s.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)

	got, err = s.GetByID(ctx, lastChance.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusFailed, got.Status)
	assert.Equal(t, domain.MaxEmailAttempts, got.Attempts)

	got, err = s.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusSending, got.Status)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.EmailStatusPending])
	assert.Equal(t, 1, counts[domain.EmailStatusFailed])
	assert.Equal(t, 1, counts[domain.EmailStatusSending])
}

func TestSQLEmailJobStore_Logs(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLEmailJobStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	job := mustEmailJob(t, "user@example.com", time.Now())
	require.NoError(t, s.Create(ctx, job))

	for i, status := range []domain.EmailStatus{domain.EmailStatusFailed, domain.EmailStatusSent} {
		require.NoError(t, s.AppendLog(ctx, &domain.EmailLogEntry{
			ID:        uuid.New(),
			JobID:     job.ID,
			Recipient: job.ToEmail,
			Subject:   job.Subject,
			Status:    status,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	logs, err := s.ListLogs(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.EmailStatusFailed, logs[0].Status)
	assert.Equal(t, domain.EmailStatusSent, logs[1].Status)

	listed, err := s.List(ctx, store.EmailJobFilter{Status: domain.EmailStatusPending})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
