package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/scheduler"
)

// Timeouts for the HTTP server. Notification streams clear their own write
// deadline.
const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// serve runs the HTTP server and, when enabled, the scheduler until ctx is
// cancelled, then shuts both down gracefully.
func (app *application) serve(ctx context.Context, configPath string) error {
	if configPath != "" {
		if err := config.Watch(configPath, app.logger, app.reconfigure); err != nil {
			app.logger.Warn("configuration hot reload disabled", "error", err)
		}
	}

	var sched *scheduler.Scheduler
	if app.config.Scheduler.Enabled {
		sched = app.newScheduler()
		switch err := sched.Start(ctx); {
		case errors.Is(err, scheduler.ErrLocked):
			app.logger.Warn("another process runs the scheduler on this host; continuing without it",
				"lock_file", app.config.Scheduler.LockFile)
			sched = nil
		case err != nil:
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}
	if sched != nil {
		sched.Stop()
	}

	app.logger.Info("server shutdown completed")
	return runErr
}
