package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasknotify/internal/api/shared"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/platform/logger"
	"github.com/phrazzld/tasknotify/internal/workflow"
)

// WorkflowHandler serves workflow definitions and transition checks.
type WorkflowHandler struct {
	workflows workflow.Service
	logger    *slog.Logger
}

// NewWorkflowHandler creates a WorkflowHandler.
func NewWorkflowHandler(workflows workflow.Service, logger *slog.Logger) *WorkflowHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WorkflowHandler")
	}
	return &WorkflowHandler{
		workflows: workflows,
		logger:    logger.With(slog.String("component", "workflow_handler")),
	}
}

// List handles GET /workflows.
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.workflows.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if defs == nil {
		defs = []*domain.WorkflowDefinition{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, defs)
}

// GetDefault handles GET /workflows/default.
func (h *WorkflowHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	def, err := h.workflows.GetDefault(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, def)
}

// Get handles GET /workflows/{id}.
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	def, err := h.workflows.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, def)
}

// ValidateTransition handles POST /workflows/{id}/validate-transition. A
// rejected transition is a 200 with valid=false.
func (h *WorkflowHandler) ValidateTransition(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ValidateTransitionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	role := req.Role
	if role == "" {
		role = claims.Role
	}

	result, err := h.workflows.ValidateTransition(r.Context(), &id, req.From, req.To, role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Create handles POST /workflows. The body is a workflow document checked
// against the workflow schema.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	def, ok := h.readDocument(w, r)
	if !ok {
		return
	}
	if err := h.workflows.Create(r.Context(), def); err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, def)
}

// Update handles PUT /workflows/{id}. The path ID wins over any ID in the
// document. The default workflow stays default until another definition
// claims the flag.
func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	def, ok := h.readDocument(w, r)
	if !ok {
		return
	}
	existing, err := h.workflows.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	def.ID = id
	def.CreatedAt = existing.CreatedAt
	def.IsDefault = def.IsDefault || existing.IsDefault
	if err := h.workflows.Update(r.Context(), def); err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, def)
}

// Delete handles DELETE /workflows/{id}.
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.workflows.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkflowHandler) readDocument(w http.ResponseWriter, r *http.Request) (*domain.WorkflowDefinition, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, shared.MaxBodyBytes))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return nil, false
	}
	def, err := workflow.ValidateDocument(raw)
	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).
			Debug("workflow document rejected", "error", err)
		handleServiceError(w, r, err)
		return nil, false
	}
	return def, true
}
