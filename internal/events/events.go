package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActivityType names the kind of task change an event reports.
type ActivityType string

// Supported activity types
const (
	ActivityStatusChanged   ActivityType = "status_changed"
	ActivityAssigned        ActivityType = "assigned"
	ActivityPriorityChanged ActivityType = "priority_changed"
	ActivityCommentAdded    ActivityType = "comment_added"
)

// IsValid reports whether t is a supported activity type.
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityStatusChanged, ActivityAssigned, ActivityPriorityChanged, ActivityCommentAdded:
		return true
	default:
		return false
	}
}

// ActivityEvent reports one change made to a task.
type ActivityEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates what changed
	Type ActivityType `json:"type"`

	// TaskID is the task that changed
	TaskID uuid.UUID `json:"taskId"`

	// ActorID is the user who made the change, if any
	ActorID *uuid.UUID `json:"actorId,omitempty"`

	// ActorRole is the acting user's role at the time of the change
	ActorRole string `json:"actorRole,omitempty"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"createdAt"`
}

// StatusChangedPayload is the payload of ActivityStatusChanged.
type StatusChangedPayload struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// AssignedPayload is the payload of ActivityAssigned.
type AssignedPayload struct {
	AssigneeID uuid.UUID `json:"assigneeId" validate:"required"`
}

// PriorityChangedPayload is the payload of ActivityPriorityChanged.
type PriorityChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to" validate:"required"`
}

// CommentAddedPayload is the payload of ActivityCommentAdded.
type CommentAddedPayload struct {
	Body string `json:"body" validate:"required"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *ActivityEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewActivityEvent creates a new ActivityEvent with the specified type and payload.
func NewActivityEvent(
	eventType ActivityType,
	taskID uuid.UUID,
	actorID *uuid.UUID,
	actorRole string,
	payload any,
) (*ActivityEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &ActivityEvent{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    taskID,
		ActorID:   actorID,
		ActorRole: actorRole,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *ActivityEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows producers to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *ActivityEvent) error
}
