// Package logger_test contains tests for the logger package
package logger_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout redirects os.Stdout while fn runs and returns what was written.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	defaultLogger := slog.Default()
	defer slog.SetDefault(defaultLogger)

	fn()

	os.Stdout = orig
	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug level", "debug", slog.LevelDebug, true},
		{"info level", "info", slog.LevelInfo, true},
		{"warn level", "warn", slog.LevelWarn, true},
		{"error level", "error", slog.LevelError, true},
		{"case insensitive - DEBUG", "DEBUG", slog.LevelDebug, true},
		{"empty means info", "", slog.LevelInfo, true},
		{"unknown falls back", "loud", slog.LevelInfo, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tc.input)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestSetup_JSONFormat(t *testing.T) {
	out := captureStdout(t, func() {
		l, err := logger.Setup(config.ServerConfig{LogLevel: "info", LogFormat: logger.FormatJSON, Port: 8080})
		require.NoError(t, err)
		require.NotNil(t, l)
		l.Debug("debug test message")
		l.Info("info test message")
	})

	assert.NotContains(t, out, "debug test message")
	assert.Contains(t, out, `"msg":"info test message"`)
}

func TestSetup_InvalidLevelWarns(t *testing.T) {
	out := captureStdout(t, func() {
		l, err := logger.Setup(config.ServerConfig{LogLevel: "invalid_level", LogFormat: logger.FormatJSON, Port: 8080})
		require.NoError(t, err)
		require.NotNil(t, l)
	})

	assert.Contains(t, out, "invalid log level configured")
	assert.Contains(t, out, "invalid_level")
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, slog.LevelInfo, logger.FormatText)
	l.Info("hello", "k", "v")

	assert.True(t, strings.Contains(buf.String(), "msg=hello"), buf.String())
	assert.Contains(t, buf.String(), "k=v")
}

func TestNew_AutoFormatNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, slog.LevelInfo, logger.FormatAuto)
	l.Info("hello")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestContextLogger(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Nil(t, logger.FromContext(context.Background()))
	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, slog.Default(), logger.FromContextOrDefault(context.Background(), nil))

	ctx, buf := logger.NewTestContext(t)
	ctx = logger.WithRequestID(ctx, "req-42")
	assert.Equal(t, "req-42", logger.RequestIDFromContext(ctx))

	logger.FromContextOrDefault(ctx, fallback).Info("scoped")
	logger.AssertLogField(t, buf, "request_id", "req-42")
	logger.AssertLogContains(t, buf, "scoped")
}
