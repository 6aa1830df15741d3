package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/platform/credential"
	"github.com/phrazzld/tasknotify/internal/service/auth"
	"github.com/phrazzld/tasknotify/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, LogLevel: "error"},
		Database: config.DatabaseConfig{Driver: "sqlite", URL: ":memory:"},
		Auth:     config.AuthConfig{JWTSecret: testSecret},
		Email:    config.EmailConfig{Port: 587, TLSMode: "starttls", BatchSize: 10},
		App:      config.AppConfig{BaseURL: "https://tasks.example.com"},
	}
}

func newTestApp(t *testing.T) *application {
	t.Helper()
	app, err := newApplication(testConfig(), testdb.DiscardLogger(), testdb.Open(t))
	require.NoError(t, err)
	t.Cleanup(app.dispatcher.Wait)
	require.NoError(t, app.seedWorkflow(context.Background()))
	return app
}

func (app *application) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := app.jwtService.GenerateToken(context.Background(), userID, role)
	require.NoError(t, err)
	return token
}

func request(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Authentication(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	router := app.setupRouter()
	member := app.token(t, uuid.New(), "member")
	admin := app.token(t, uuid.New(), auth.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"api requires a token", http.MethodGet, "/api/notifications", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/notifications", "not-a-jwt", http.StatusUnauthorized},
		{"member inbox", http.MethodGet, "/api/notifications", member, http.StatusOK},
		{"member unread count", http.MethodGet, "/api/notifications/unread-count", member, http.StatusOK},
		{"member preferences", http.MethodGet, "/api/preferences", member, http.StatusOK},
		{"member workflows", http.MethodGet, "/api/workflows", member, http.StatusOK},
		{"member default workflow", http.MethodGet, "/api/workflows/default", member, http.StatusOK},
		{"member cannot create workflows", http.MethodPost, "/api/workflows", member, http.StatusForbidden},
		{"member cannot list email jobs", http.MethodGet, "/api/admin/email/jobs", member, http.StatusForbidden},
		{"admin lists email jobs", http.MethodGet, "/api/admin/email/jobs", admin, http.StatusOK},
		{"admin scans reminders", http.MethodPost, "/api/admin/reminders/scan", admin, http.StatusOK},
		{"unconfigured drain is a no-op", http.MethodPost, "/api/admin/email/drain", admin, http.StatusOK},
		{"unconfigured verify", http.MethodPost, "/api/admin/email/verify", admin, http.StatusServiceUnavailable},
		{"member cannot report activity", http.MethodPost, "/api/activity", member, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := request(t, router, tc.method, tc.path, tc.token, "")
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_ActivityToInbox(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	router := app.setupRouter()

	assignee := testdb.CreateUser(t, app.db, "assignee", "", "")
	task := testdb.CreateTask(t, app.db, testdb.TaskFixture{Title: "Ship it", AssigneeID: &assignee.ID})
	service := app.token(t, uuid.New(), auth.RoleService)

	rec := request(t, router, http.MethodPost, "/api/activity", service,
		`{"type":"status_changed","taskId":"`+task.ID.String()+`","payload":{"to":"in_progress"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = request(t, router, http.MethodGet, "/api/notifications/unread-count",
		app.token(t, assignee.ID, "member"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())
}

func TestNewApplication_RejectsShortSecret(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Auth.JWTSecret = "short"

	_, err := newApplication(cfg, testdb.DiscardLogger(), testdb.Open(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT service")
}

type fakeKeyring map[string]string

func (f fakeKeyring) Get(key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", credential.ErrNotFound
	}
	return v, nil
}

// Not parallel: swaps the package-level keyring opener.
func TestNewApplication_KeyringPassword(t *testing.T) {
	original := openKeyring
	t.Cleanup(func() { openKeyring = original })

	var opened []string
	openKeyring = func(dir string) (credential.Getter, error) {
		opened = append(opened, dir)
		return fakeKeyring{"smtp": "from-keyring"}, nil
	}

	cfg := testConfig()
	_, err := newApplication(cfg, testdb.DiscardLogger(), testdb.Open(t))
	require.NoError(t, err)
	assert.Empty(t, opened, "keyring untouched without a key name")

	cfg.Email.PasswordKeyringKey = "smtp"
	cfg.Email.KeyringDir = "/var/lib/tasknotify/keys"
	_, err = newApplication(cfg, testdb.DiscardLogger(), testdb.Open(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"/var/lib/tasknotify/keys"}, opened)

	cfg.Email.PasswordKeyringKey = "missing"
	_, err = newApplication(cfg, testdb.DiscardLogger(), testdb.Open(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, credential.ErrNotFound))

	openKeyring = func(string) (credential.Getter, error) { return nil, errors.New("no keyring backend") }
	_, err = newApplication(cfg, testdb.DiscardLogger(), testdb.Open(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP password")
}

func TestApplication_Reconfigure(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	require.False(t, app.queue.Configured())

	cfg := testConfig()
	cfg.Email.Enabled = true
	cfg.Email.Host = "smtp.example.com"
	cfg.Email.FromAddress = "noreply@example.com"
	app.reconfigure(cfg)

	assert.True(t, app.queue.Configured())
}
