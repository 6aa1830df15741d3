package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

const workflowColumns = `id, name, statuses, transitions, role_restrictions, is_default, created_at, updated_at`

// workflowRow is the persisted shape of a workflow definition. The nested
// collections are stored as JSON documents.
type workflowRow struct {
	ID               uuid.UUID `db:"id"`
	Name             string    `db:"name"`
	Statuses         string    `db:"statuses"`
	Transitions      string    `db:"transitions"`
	RoleRestrictions string    `db:"role_restrictions"`
	IsDefault        bool      `db:"is_default"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func toWorkflowRow(def *domain.WorkflowDefinition) (*workflowRow, error) {
	statuses, err := json.Marshal(def.Statuses)
	if err != nil {
		return nil, fmt.Errorf("marshal statuses: %w", err)
	}
	transitions, err := json.Marshal(def.Transitions)
	if err != nil {
		return nil, fmt.Errorf("marshal transitions: %w", err)
	}
	restrictions := def.RoleRestrictions
	if restrictions == nil {
		restrictions = map[string][]string{}
	}
	roles, err := json.Marshal(restrictions)
	if err != nil {
		return nil, fmt.Errorf("marshal role restrictions: %w", err)
	}
	return &workflowRow{
		ID:               def.ID,
		Name:             def.Name,
		Statuses:         string(statuses),
		Transitions:      string(transitions),
		RoleRestrictions: string(roles),
		IsDefault:        def.IsDefault,
		CreatedAt:        def.CreatedAt.UTC(),
		UpdatedAt:        def.UpdatedAt.UTC(),
	}, nil
}

func (r *workflowRow) toDomain() (*domain.WorkflowDefinition, error) {
	def := &domain.WorkflowDefinition{
		ID:        r.ID,
		Name:      r.Name,
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.Statuses), &def.Statuses); err != nil {
		return nil, fmt.Errorf("decode statuses of workflow %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Transitions), &def.Transitions); err != nil {
		return nil, fmt.Errorf("decode transitions of workflow %s: %w", r.ID, err)
	}
	if r.RoleRestrictions != "" {
		if err := json.Unmarshal([]byte(r.RoleRestrictions), &def.RoleRestrictions); err != nil {
			return nil, fmt.Errorf("decode role restrictions of workflow %s: %w", r.ID, err)
		}
	}
	return def, nil
}

// SQLWorkflowStore implements the store.WorkflowStore interface.
type SQLWorkflowStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLWorkflowStore creates a new SQL implementation of the WorkflowStore interface.
// If logger is nil, a default logger will be used.
func NewSQLWorkflowStore(db store.DBTX, logger *slog.Logger) *SQLWorkflowStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLWorkflowStore{
		db:     db,
		logger: logger.With(slog.String("component", "workflow_store")),
	}
}

// Ensure SQLWorkflowStore implements store.WorkflowStore interface
var _ store.WorkflowStore = (*SQLWorkflowStore)(nil)

// Create implements store.WorkflowStore.Create
func (s *SQLWorkflowStore) Create(ctx context.Context, def *domain.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	row, err := toWorkflowRow(def)
	if err != nil {
		return err
	}

	query := `INSERT INTO workflow_definitions (` + workflowColumns + `)
		VALUES (:id, :name, :statuses, :transitions, :role_restrictions, :is_default, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.Error("failed to create workflow",
			slog.String("workflow_id", def.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// Update implements store.WorkflowStore.Update
func (s *SQLWorkflowStore) Update(ctx context.Context, def *domain.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	row, err := toWorkflowRow(def)
	if err != nil {
		return err
	}

	query := `UPDATE workflow_definitions
		SET name = :name, statuses = :statuses, transitions = :transitions,
			role_restrictions = :role_restrictions, is_default = :is_default, updated_at = :updated_at
		WHERE id = :id`
	result, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		s.logger.Error("failed to update workflow",
			slog.String("workflow_id", def.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrWorkflowNotFound)
}

// GetByID implements store.WorkflowStore.GetByID
func (s *SQLWorkflowStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error) {
	query := s.db.Rebind(`SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE id = ?`)
	return s.getOne(ctx, query, id)
}

// GetDefault implements store.WorkflowStore.GetDefault
func (s *SQLWorkflowStore) GetDefault(ctx context.Context) (*domain.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE is_default = TRUE`
	return s.getOne(ctx, query)
}

func (s *SQLWorkflowStore) getOne(ctx context.Context, query string, args ...any) (*domain.WorkflowDefinition, error) {
	var row workflowRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrWorkflowNotFound
		}
		return nil, MapError(err)
	}
	return row.toDomain()
}

// List implements store.WorkflowStore.List
func (s *SQLWorkflowStore) List(ctx context.Context) ([]*domain.WorkflowDefinition, error) {
	var rows []workflowRow
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions ORDER BY is_default DESC, name ASC`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, MapError(err)
	}

	defs := make([]*domain.WorkflowDefinition, 0, len(rows))
	for i := range rows {
		def, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Delete implements store.WorkflowStore.Delete
func (s *SQLWorkflowStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM workflow_definitions WHERE id = ?`), id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrWorkflowNotFound)
}

// ClearDefault implements store.WorkflowStore.ClearDefault
func (s *SQLWorkflowStore) ClearDefault(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE workflow_definitions SET is_default = FALSE WHERE is_default = TRUE`)
	return MapError(err)
}

// Count implements store.WorkflowStore.Count
func (s *SQLWorkflowStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM workflow_definitions`); err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// WithTx implements store.WorkflowStore.WithTx
func (s *SQLWorkflowStore) WithTx(tx *sqlx.Tx) store.WorkflowStore {
	return &SQLWorkflowStore{db: tx, logger: s.logger}
}
