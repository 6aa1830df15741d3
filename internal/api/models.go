package api

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/events"
)

// NotificationListResponse is the body of GET /api/notifications.
type NotificationListResponse struct {
	Notifications []*domain.Notification `json:"notifications"`
	UnreadCount   int                    `json:"unreadCount"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

// UnreadCountResponse is the body of GET /api/notifications/unread-count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkAllReadResponse reports how many notifications were marked read.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// ValidateTransitionRequest proposes a status change. Role defaults to the
// caller's role.
type ValidateTransitionRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
	Role string `json:"role,omitempty"`
}

// ActivityRequest reports one task change. ActorID and ActorRole default to
// the caller's identity.
type ActivityRequest struct {
	Type      events.ActivityType `json:"type" validate:"required"`
	TaskID    uuid.UUID           `json:"taskId" validate:"required"`
	ActorID   *uuid.UUID          `json:"actorId,omitempty"`
	ActorRole string              `json:"actorRole,omitempty"`
	Payload   json.RawMessage     `json:"payload" validate:"required"`
}

// ActivityResponse acknowledges an accepted activity event.
type ActivityResponse struct {
	EventID uuid.UUID `json:"eventId"`
}

// EmailJobListResponse is the body of GET /api/admin/email/jobs.
type EmailJobListResponse struct {
	Jobs  []*domain.EmailJob         `json:"jobs"`
	Stats map[domain.EmailStatus]int `json:"stats"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
