package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// WorkflowStore defines the interface for workflow definition persistence.
type WorkflowStore interface {
	// Create saves a new workflow definition.
	// Returns ErrInvalidEntity if the definition fails domain validation and
	// ErrDuplicate if it would introduce a second default.
	Create(ctx context.Context, def *domain.WorkflowDefinition) error

	// Update replaces the name, statuses, transitions, role restrictions and
	// default flag of an existing definition.
	// Returns ErrWorkflowNotFound if the definition does not exist.
	Update(ctx context.Context, def *domain.WorkflowDefinition) error

	// GetByID retrieves a definition by its unique ID.
	// Returns ErrWorkflowNotFound if the definition does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error)

	// GetDefault retrieves the definition flagged as default.
	// Returns ErrWorkflowNotFound if no definition is flagged.
	GetDefault(ctx context.Context) (*domain.WorkflowDefinition, error)

	// List returns all definitions, default first and then by name.
	List(ctx context.Context) ([]*domain.WorkflowDefinition, error)

	// Delete removes a definition by its ID.
	// Returns ErrWorkflowNotFound if the definition does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ClearDefault unsets the default flag on every definition.
	// It must run in the same transaction as the write that sets the new
	// default, so that readers never observe two defaults.
	ClearDefault(ctx context.Context) error

	// Count returns the number of stored definitions.
	Count(ctx context.Context) (int, error)

	// WithTx returns a new WorkflowStore instance that uses the provided transaction.
	//
	// Example usage:
	//   err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
	//       txStore := workflowStore.WithTx(tx)
	//       if err := txStore.ClearDefault(ctx); err != nil {
	//           return err
	//       }
	//       return txStore.Update(ctx, def)
	//   })
	WithTx(tx *sqlx.Tx) WorkflowStore
}
