package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/platform/database"
	"github.com/phrazzld/tasknotify/internal/store"
	"github.com/phrazzld/tasknotify/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflow(name string, isDefault bool) *domain.WorkflowDefinition {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.WorkflowDefinition{
		ID:   uuid.New(),
		Name: name,
		Statuses: []domain.WorkflowStatus{
			{ID: "todo", DisplayName: "To Do", Color: "#888888", Order: 1},
			{ID: "doing", DisplayName: "Doing", Color: "#0055ff", Order: 2},
			{ID: "done", DisplayName: "Done", Color: "#00aa00", Order: 3},
		},
		Transitions: []domain.WorkflowTransition{
			{From: "todo", To: []string{"doing"}},
			{From: "doing", To: []string{"done", "todo"}},
		},
		RoleRestrictions: map[string][]string{"doing->done": {"admin"}},
		IsDefault:        isDefault,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestSQLWorkflowStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLWorkflowStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	def := newWorkflow("Engineering", true)
	require.NoError(t, s.Create(ctx, def))

	got, err := s.GetByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.Statuses, got.Statuses)
	assert.Equal(t, def.Transitions, got.Transitions)
	assert.Equal(t, def.RoleRestrictions, got.RoleRestrictions)
	assert.True(t, got.IsDefault)
	assert.WithinDuration(t, def.CreatedAt, got.CreatedAt, time.Millisecond)

	dflt, err := s.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, def.ID, dflt.ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLWorkflowStore_NotFound(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLWorkflowStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	_, err := s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrWorkflowNotFound)

	_, err = s.GetDefault(ctx)
	assert.ErrorIs(t, err, store.ErrWorkflowNotFound)

	assert.ErrorIs(t, s.Delete(ctx, uuid.New()), store.ErrWorkflowNotFound)
	assert.ErrorIs(t, s.Update(ctx, newWorkflow("ghost", false)), store.ErrWorkflowNotFound)
}

func TestSQLWorkflowStore_CreateInvalid(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLWorkflowStore(db, testdb.DiscardLogger())

	def := newWorkflow("", false)
	err := s.Create(context.Background(), def)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSQLWorkflowStore_SecondDefaultRejected(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLWorkflowStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newWorkflow("A", true)))
	err := s.Create(ctx, newWorkflow("B", true))
	require.Error(t, err)
	assert.True(t, store.IsDuplicateError(err), "got %v", err)
}

func TestSQLWorkflowStore_ClearThenSetInTransaction(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLWorkflowStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	a := newWorkflow("A", true)
	b := newWorkflow("B", false)
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
		txStore := s.WithTx(tx)
		if err := txStore.ClearDefault(ctx); err != nil {
			return err
		}
		b.IsDefault = true
		return txStore.Update(ctx, b)
	})
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID, "default sorts first")
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)
}

func TestSQLWorkflowStore_RollbackKeepsDefault(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLWorkflowStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	a := newWorkflow("A", true)
	require.NoError(t, s.Create(ctx, a))

	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := s.WithTx(tx).ClearDefault(ctx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	dflt, err := s.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, dflt.ID)
}

func TestSQLWorkflowStore_Delete(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)
	s := database.NewSQLWorkflowStore(db, testdb.DiscardLogger())
	ctx := context.Background()

	def := newWorkflow("Temp", false)
	require.NoError(t, s.Create(ctx, def))
	require.NoError(t, s.Delete(ctx, def.ID))

	_, err := s.GetByID(ctx, def.ID)
	assert.ErrorIs(t, err, store.ErrWorkflowNotFound)
}
