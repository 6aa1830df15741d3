package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the kind of event a notification reports.
type NotificationType string

// Possible notification types
const (
	NotificationTaskAssigned    NotificationType = "task_assigned"
	NotificationMentioned       NotificationType = "mentioned"
	NotificationStatusChanged   NotificationType = "status_changed"
	NotificationPriorityChanged NotificationType = "priority_changed"
	NotificationDueSoon         NotificationType = "due_soon"
	NotificationOverdue         NotificationType = "overdue"
	NotificationCommentAdded    NotificationType = "comment_added"
)

// IsValid reports whether t is one of the known notification types.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTaskAssigned, NotificationMentioned, NotificationStatusChanged,
		NotificationPriorityChanged, NotificationDueSoon, NotificationOverdue,
		NotificationCommentAdded:
		return true
	default:
		return false
	}
}

// Metadata is an opaque key-value bag persisted as JSON.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Notification is a persisted, user-visible in-app record. Only IsRead and
// ReadAt change after creation.
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"userId" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Content   string           `json:"content" db:"content"`
	TaskID    *uuid.UUID       `json:"taskId,omitempty" db:"task_id"`
	ActorID   *uuid.UUID       `json:"actorId,omitempty" db:"actor_id"`
	Metadata  Metadata         `json:"metadata,omitempty" db:"metadata"`
	IsRead    bool             `json:"isRead" db:"is_read"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
	ReadAt    *time.Time       `json:"readAt,omitempty" db:"read_at"`
}

// NewNotification creates an unread notification stamped with the current time.
func NewNotification(
	userID uuid.UUID,
	t NotificationType,
	title, content string,
	taskID, actorID *uuid.UUID,
	metadata Metadata,
) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      t,
		Title:     title,
		Content:   content,
		TaskID:    taskID,
		ActorID:   actorID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks if the Notification has valid data.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return NewValidationError("id", "must not be empty")
	}
	if n.UserID == uuid.Nil {
		return NewValidationError("userId", "must not be empty")
	}
	if !n.Type.IsValid() {
		return NewValidationError("type", fmt.Sprintf("unknown notification type %q", n.Type))
	}
	if n.Title == "" {
		return NewValidationError("title", "must not be empty")
	}
	return nil
}

// NotificationSummary is the payload handed to the push collaborator.
type NotificationSummary struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Content   string           `json:"content,omitempty"`
	TaskID    *uuid.UUID       `json:"taskId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Summary builds the push payload for n.
func (n *Notification) Summary() NotificationSummary {
	return NotificationSummary{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Content:   n.Content,
		TaskID:    n.TaskID,
		CreatedAt: n.CreatedAt,
	}
}
