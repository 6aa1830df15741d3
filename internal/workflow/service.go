package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

// ErrCannotDeleteDefault is returned when deleting the default workflow.
// API layer should map this to HTTP 409 Conflict.
var ErrCannotDeleteDefault = errors.New("cannot delete the default workflow")

// Service provides workflow definition operations.
type Service interface {
	// Get retrieves a definition by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error)

	// GetDefault retrieves the default definition.
	GetDefault(ctx context.Context) (*domain.WorkflowDefinition, error)

	// List returns all definitions, default first.
	List(ctx context.Context) ([]*domain.WorkflowDefinition, error)

	// Create stores a new definition. If it is flagged default, the flag is
	// cleared on every other definition in the same transaction.
	Create(ctx context.Context, def *domain.WorkflowDefinition) error

	// Update replaces an existing definition, with the same default handling
	// as Create.
	Update(ctx context.Context, def *domain.WorkflowDefinition) error

	// Delete removes a definition. The default definition cannot be deleted.
	Delete(ctx context.Context, id uuid.UUID) error

	// ValidateTransition checks a status change against the definition with
	// the given ID, or against the default definition when workflowID is nil.
	ValidateTransition(
		ctx context.Context,
		workflowID *uuid.UUID,
		from, to, role string,
	) (domain.TransitionResult, error)
}

// ServiceImpl implements the Service interface.
type ServiceImpl struct {
	workflows store.WorkflowStore
	db        *sqlx.DB
	logger    *slog.Logger
}

// NewService creates a new workflow Service.
func NewService(workflows store.WorkflowStore, db *sqlx.DB, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceImpl{
		workflows: workflows,
		db:        db,
		logger:    logger.With("component", "workflow_service"),
	}
}

// Get retrieves a definition by ID.
func (s *ServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error) {
	def, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve workflow: %w", err)
	}
	return def, nil
}

// GetDefault retrieves the default definition.
func (s *ServiceImpl) GetDefault(ctx context.Context) (*domain.WorkflowDefinition, error) {
	def, err := s.workflows.GetDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve default workflow: %w", err)
	}
	return def, nil
}

// List returns all definitions.
func (s *ServiceImpl) List(ctx context.Context) ([]*domain.WorkflowDefinition, error) {
	defs, err := s.workflows.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return defs, nil
}

// Create stores a new definition.
func (s *ServiceImpl) Create(ctx context.Context, def *domain.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	err := s.write(ctx, def, func(ctx context.Context, ws store.WorkflowStore) error {
		return ws.Create(ctx, def)
	})
	if err != nil {
		s.logger.Error("failed to create workflow",
			"error", err,
			"name", def.Name)
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	s.logger.Info("workflow created",
		"workflow_id", def.ID,
		"name", def.Name,
		"is_default", def.IsDefault)
	return nil
}

// Update replaces an existing definition. CreatedAt is kept as stored.
func (s *ServiceImpl) Update(ctx context.Context, def *domain.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	def.UpdatedAt = time.Now().UTC()

	err := s.write(ctx, def, func(ctx context.Context, ws store.WorkflowStore) error {
		return ws.Update(ctx, def)
	})
	if err != nil {
		if !errors.Is(err, store.ErrWorkflowNotFound) {
			s.logger.Error("failed to update workflow",
				"error", err,
				"workflow_id", def.ID)
		}
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	s.logger.Info("workflow updated",
		"workflow_id", def.ID,
		"is_default", def.IsDefault)
	return nil
}

// write runs fn in a transaction, clearing the current default first when
// def is to become the default.
func (s *ServiceImpl) write(
	ctx context.Context,
	def *domain.WorkflowDefinition,
	fn func(ctx context.Context, ws store.WorkflowStore) error,
) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		txStore := s.workflows.WithTx(tx)
		if def.IsDefault {
			if err := txStore.ClearDefault(ctx); err != nil {
				return err
			}
		}
		return fn(ctx, txStore)
	})
}

// Delete removes a definition unless it is the default.
func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		txStore := s.workflows.WithTx(tx)

		def, err := txStore.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if def.IsDefault {
			return ErrCannotDeleteDefault
		}
		return txStore.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrCannotDeleteDefault) {
			s.logger.Debug("refused to delete default workflow", "workflow_id", id)
			return err
		}
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	s.logger.Info("workflow deleted", "workflow_id", id)
	return nil
}

// ValidateTransition resolves the applicable definition and checks the
// transition against it. A rejected transition is a result, not an error.
func (s *ServiceImpl) ValidateTransition(
	ctx context.Context,
	workflowID *uuid.UUID,
	from, to, role string,
) (domain.TransitionResult, error) {
	var (
		def *domain.WorkflowDefinition
		err error
	)
	if workflowID != nil {
		def, err = s.Get(ctx, *workflowID)
	} else {
		def, err = s.GetDefault(ctx)
	}
	if err != nil {
		return domain.TransitionResult{}, err
	}

	result := domain.ValidateTransition(def, from, to, role)
	if !result.Valid {
		s.logger.Debug("transition rejected",
			"workflow_id", def.ID,
			"from", from,
			"to", to,
			"role", role,
			"reason", result.Reason)
	}
	return result, nil
}
