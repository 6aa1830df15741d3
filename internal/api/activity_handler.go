package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasknotify/internal/api/shared"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/events"
	"github.com/phrazzld/tasknotify/internal/platform/logger"
	"github.com/phrazzld/tasknotify/internal/store"
	"github.com/phrazzld/tasknotify/internal/workflow"
)

// ActivityHandler accepts task activity reported by the task service and
// hands it to the event emitter.
type ActivityHandler struct {
	emitter   events.EventEmitter
	tasks     store.TaskStore
	workflows workflow.Service
	logger    *slog.Logger
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(
	emitter events.EventEmitter,
	tasks store.TaskStore,
	workflows workflow.Service,
	logger *slog.Logger,
) *ActivityHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ActivityHandler")
	}
	return &ActivityHandler{
		emitter:   emitter,
		tasks:     tasks,
		workflows: workflows,
		logger:    logger.With(slog.String("component", "activity_handler")),
	}
}

// Record handles POST /activity. Status changes are checked against the
// task's workflow first; a rejected transition answers 422 with the
// transition result and notifies nobody. Accepted events answer 202.
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req ActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !req.Type.IsValid() {
		handleServiceError(w, r, domain.NewValidationError("type", "unsupported activity type"))
		return
	}

	actorID := req.ActorID
	if actorID == nil {
		id := claims.UserID
		actorID = &id
	}
	actorRole := req.ActorRole
	if actorRole == "" {
		actorRole = claims.Role
	}

	if req.Type == events.ActivityStatusChanged {
		payload, result, err := h.checkTransition(r, &req, actorRole)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !result.Valid {
			log.Info("status change rejected",
				"task_id", req.TaskID,
				"reason", result.Reason)
			shared.RespondWithJSON(w, r, http.StatusUnprocessableEntity, result)
			return
		}
		req.Payload = payload
	}

	ev, err := events.NewActivityEvent(req.Type, req.TaskID, actorID, actorRole, req.Payload)
	if err != nil {
		handleServiceError(w, r, domain.NewValidationError("payload", "malformed payload"))
		return
	}
	if err := h.emitter.EmitEvent(r.Context(), ev); err != nil {
		handleServiceError(w, r, err)
		return
	}

	log.Debug("activity accepted",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"task_id", ev.TaskID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, ActivityResponse{EventID: ev.ID})
}

// checkTransition validates a status change against the task's workflow,
// or the default workflow when the task has none. A missing from status is
// taken from the task.
func (h *ActivityHandler) checkTransition(
	r *http.Request,
	req *ActivityRequest,
	role string,
) (json.RawMessage, domain.TransitionResult, error) {
	var payload events.StatusChangedPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return nil, domain.TransitionResult{}, domain.NewValidationError("payload", "malformed payload")
	}
	if payload.To == "" {
		return nil, domain.TransitionResult{}, domain.NewValidationError("payload.to", "is required")
	}

	task, err := h.tasks.GetByID(r.Context(), req.TaskID)
	if err != nil {
		return nil, domain.TransitionResult{}, err
	}
	if payload.From == "" {
		payload.From = task.Status
	}

	result, err := h.workflows.ValidateTransition(r.Context(), task.WorkflowID, payload.From, payload.To, role)
	if err != nil {
		return nil, domain.TransitionResult{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.TransitionResult{}, err
	}
	return raw, result, nil
}
