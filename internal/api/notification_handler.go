package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/api/shared"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/platform/logger"
	"github.com/phrazzld/tasknotify/internal/push"
	"github.com/phrazzld/tasknotify/internal/store"
)

// Paging limits for notification listings.
const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 200
)

// DefaultStreamHeartbeat is how often an idle stream sends a keep-alive comment.
const DefaultStreamHeartbeat = 30 * time.Second

// InboxService is the subset of the notification inbox used by the handler.
type InboxService interface {
	List(ctx context.Context, userID uuid.UUID, filter store.NotificationFilter) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// Subscriber opens live notification subscriptions.
type Subscriber interface {
	Subscribe(userID uuid.UUID) *push.Subscription
}

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	inbox     InboxService
	hub       Subscriber
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(inbox InboxService, hub Subscriber, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for NotificationHandler")
	}
	return &NotificationHandler{
		inbox:     inbox,
		hub:       hub,
		heartbeat: DefaultStreamHeartbeat,
		logger:    logger.With(slog.String("component", "notification_handler")),
	}
}

// SetHeartbeat overrides the stream keep-alive interval.
func (h *NotificationHandler) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// List handles GET /notifications. Query parameters: limit, offset and
// unread=true.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", DefaultNotificationLimit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if limit == 0 || limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	filter := store.NotificationFilter{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      limit,
		Offset:     offset,
	}
	list, err := h.inbox.List(r.Context(), claims.UserID, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	unread, err := h.inbox.UnreadCount(r.Context(), claims.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Notification{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NotificationListResponse{
		Notifications: list,
		UnreadCount:   unread,
		Limit:         limit,
		Offset:        offset,
	})
}

// UnreadCount handles GET /notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	n, err := h.inbox.UnreadCount(r.Context(), claims.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, UnreadCountResponse{Count: n})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(r.Context(), claims.UserID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	n, err := h.inbox.MarkAllRead(r.Context(), claims.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, MarkAllReadResponse{Updated: n})
}

// Delete handles DELETE /notifications/{id}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.inbox.Delete(r.Context(), claims.UserID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stream handles GET /notifications/stream as a server-sent events feed of
// the caller's new notifications. It runs until the client disconnects.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut long-lived streams.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("could not clear write deadline", "error", err)
	}

	sub := h.hub.Subscribe(claims.UserID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Warn("streaming not supported", "error", err)
		return
	}

	log.Debug("notification stream opened", "user_id", claims.UserID)
	defer log.Debug("notification stream closed", "user_id", claims.UserID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case summary, open := <-sub.C:
			if !open {
				return
			}
			if err := writeEvent(w, "notification", summary); err != nil {
				log.Debug("stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
