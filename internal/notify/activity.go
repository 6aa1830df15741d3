package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/events"
)

// ActivityHandler maps task activity events to Dispatcher calls.
type ActivityHandler struct {
	dispatcher *Dispatcher
	validate   *validator.Validate
	logger     *slog.Logger
}

var _ events.EventHandler = (*ActivityHandler)(nil)

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(dispatcher *Dispatcher, logger *slog.Logger) *ActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityHandler{
		dispatcher: dispatcher,
		validate:   validator.New(),
		logger:     logger.With("component", "activity_handler"),
	}
}

// HandleEvent implements events.EventHandler. Status changes reaching this
// handler are assumed to have passed workflow validation already.
func (h *ActivityHandler) HandleEvent(ctx context.Context, event *events.ActivityEvent) error {
	log := h.logger.With("event_id", event.ID, "event_type", event.Type, "task_id", event.TaskID)

	var err error
	switch event.Type {
	case events.ActivityStatusChanged:
		var p events.StatusChangedPayload
		if err = h.decode(event, &p); err == nil {
			_, err = h.dispatcher.NotifyStatusChange(ctx, event.TaskID, p.From, p.To, event.ActorID)
		}
	case events.ActivityAssigned:
		var p events.AssignedPayload
		if err = h.decode(event, &p); err == nil {
			_, err = h.dispatcher.NotifyTaskAssignment(ctx, event.TaskID, p.AssigneeID, event.ActorID)
		}
	case events.ActivityPriorityChanged:
		var p events.PriorityChangedPayload
		if err = h.decode(event, &p); err == nil {
			_, err = h.dispatcher.NotifyPriorityChange(ctx, event.TaskID, p.From, p.To, event.ActorID)
		}
	case events.ActivityCommentAdded:
		var p events.CommentAddedPayload
		if err = h.decode(event, &p); err == nil {
			err = h.handleComment(ctx, event, p.Body)
		}
	default:
		log.Debug("ignoring unsupported activity type")
		return nil
	}

	if err != nil {
		log.Error("failed to handle activity event", "error", err)
		return err
	}
	return nil
}

// handleComment notifies mentioned users first, then the task's watchers
// who were not mentioned.
func (h *ActivityHandler) handleComment(ctx context.Context, event *events.ActivityEvent, body string) error {
	mentioned, mentionErr := h.dispatcher.ProcessMentions(ctx, body, event.TaskID, event.ActorID)

	skip := make(map[uuid.UUID]bool, len(mentioned))
	for _, id := range mentioned {
		skip[id] = true
	}
	_, commentErr := h.dispatcher.NotifyComment(ctx, event.TaskID, body, event.ActorID, skip)

	if mentionErr != nil {
		return mentionErr
	}
	return commentErr
}

func (h *ActivityHandler) decode(event *events.ActivityEvent, v any) error {
	if err := event.UnmarshalPayload(v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.Type, err)
	}
	if err := h.validate.Struct(v); err != nil {
		return eventValidationError(err)
	}
	return nil
}
