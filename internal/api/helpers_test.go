package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/api"
	"github.com/phrazzld/tasknotify/internal/api/middleware"
	"github.com/phrazzld/tasknotify/internal/api/shared"
	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/events"
	"github.com/phrazzld/tasknotify/internal/mailqueue"
	"github.com/phrazzld/tasknotify/internal/notify"
	"github.com/phrazzld/tasknotify/internal/platform/database"
	"github.com/phrazzld/tasknotify/internal/preference"
	"github.com/phrazzld/tasknotify/internal/push"
	"github.com/phrazzld/tasknotify/internal/reminder"
	"github.com/phrazzld/tasknotify/internal/service/auth"
	"github.com/phrazzld/tasknotify/internal/store"
	"github.com/phrazzld/tasknotify/internal/testdb"
	"github.com/phrazzld/tasknotify/internal/workflow"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	drain     mailqueue.DrainResult
	drainErr  error
	verifyErr error
	jobs      []*domain.EmailJob
	filter    store.EmailJobFilter
	batch     int
}

func (q *stubQueue) Drain(_ context.Context, batch int) (mailqueue.DrainResult, error) {
	q.batch = batch
	return q.drain, q.drainErr
}

func (q *stubQueue) Verify(context.Context) error { return q.verifyErr }

func (q *stubQueue) List(_ context.Context, filter store.EmailJobFilter) ([]*domain.EmailJob, error) {
	q.filter = filter
	return q.jobs, nil
}

func (q *stubQueue) Stats(context.Context) (map[domain.EmailStatus]int, error) {
	return map[domain.EmailStatus]int{domain.EmailStatusPending: len(q.jobs)}, nil
}

type stubScanner struct {
	result reminder.ScanResult
	calls  int
}

func (s *stubScanner) ScanDueSoonAndOverdue(context.Context) (reminder.ScanResult, error) {
	s.calls++
	return s.result, nil
}

// testEnv wires the handlers over an in-memory SQLite database the same way
// the server does, minus token validation: requests carry claims directly.
type testEnv struct {
	db            *sqlx.DB
	router        chi.Router
	dispatcher    *notify.Dispatcher
	notifications store.NotificationStore
	workflows     workflow.Service
	hub           *push.Hub
	queue         *stubQueue
	scanner       *stubScanner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testdb.Open(t)
	logger := testdb.DiscardLogger()
	ctx := context.Background()

	e := &testEnv{
		db:            db,
		notifications: database.NewSQLNotificationStore(db, logger),
		hub:           push.NewHub(0, logger),
		queue:         &stubQueue{},
		scanner:       &stubScanner{},
	}
	e.workflows = workflow.NewService(database.NewSQLWorkflowStore(db, logger), db, logger)
	_, err := workflow.Seed(ctx, e.workflows, "", logger)
	require.NoError(t, err)

	prefs := preference.NewResolver(database.NewSQLPreferenceStore(db, logger), logger)
	tasks := database.NewSQLTaskStore(db, logger)
	e.dispatcher = notify.NewDispatcher(notify.Dependencies{
		DB:            db,
		Notifications: e.notifications,
		Users:         database.NewSQLUserStore(db),
		Tasks:         tasks,
		Preferences:   prefs,
		Queue:         mailqueue.NewQueue(database.NewSQLEmailJobStore(db, logger), config.EmailConfig{}, nil, logger),
		Pusher:        e.hub,
		BaseURL:       "https://tasks.example.com",
	}, logger)
	t.Cleanup(e.dispatcher.Wait)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(notify.NewActivityHandler(e.dispatcher, logger))

	notifications := api.NewNotificationHandler(notify.NewInbox(e.notifications, logger), e.hub, logger)
	preferences := api.NewPreferenceHandler(prefs, logger)
	workflows := api.NewWorkflowHandler(e.workflows, logger)
	admin := api.NewAdminHandler(e.queue, e.scanner, logger)
	activity := api.NewActivityHandler(emitter, tasks, e.workflows, logger)

	r := chi.NewRouter()
	r.Get("/notifications", notifications.List)
	r.Get("/notifications/unread-count", notifications.UnreadCount)
	r.Get("/notifications/stream", notifications.Stream)
	r.Post("/notifications/read-all", notifications.MarkAllRead)
	r.Post("/notifications/{id}/read", notifications.MarkRead)
	r.Delete("/notifications/{id}", notifications.Delete)
	r.Get("/preferences", preferences.Get)
	r.Patch("/preferences", preferences.Update)
	r.Get("/workflows", workflows.List)
	r.Get("/workflows/default", workflows.GetDefault)
	r.Get("/workflows/{id}", workflows.Get)
	r.Post("/workflows/{id}/validate-transition", workflows.ValidateTransition)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleAdmin))
		r.Post("/workflows", workflows.Create)
		r.Put("/workflows/{id}", workflows.Update)
		r.Delete("/workflows/{id}", workflows.Delete)
		r.Post("/admin/email/drain", admin.DrainEmail)
		r.Post("/admin/email/verify", admin.VerifyEmail)
		r.Get("/admin/email/jobs", admin.ListEmailJobs)
		r.Post("/admin/reminders/scan", admin.ScanReminders)
	})
	r.Post("/activity", activity.Record)
	e.router = r
	return e
}

func claimsFor(userID uuid.UUID, role string) *auth.Claims {
	return &auth.Claims{UserID: userID, Role: role}
}

// do performs a request as the given caller. A nil caller is anonymous;
// a []byte body is sent verbatim, anything else as JSON.
func (e *testEnv) do(t *testing.T, method, path string, body any, caller *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req = req.WithContext(shared.WithClaims(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[shared.ErrorResponse](t, rec).Error
}

// dispatch creates an in-app notification for userID.
func (e *testEnv) dispatch(t *testing.T, userID uuid.UUID, title string) uuid.UUID {
	t.Helper()
	id, err := e.dispatcher.Dispatch(context.Background(), notify.Event{
		UserID: userID,
		Type:   domain.NotificationMentioned,
		Title:  title,
	})
	require.NoError(t, err)
	require.NotNil(t, id)
	return *id
}
