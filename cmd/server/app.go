package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/events"
	"github.com/phrazzld/tasknotify/internal/mailqueue"
	"github.com/phrazzld/tasknotify/internal/notify"
	"github.com/phrazzld/tasknotify/internal/platform/credential"
	"github.com/phrazzld/tasknotify/internal/platform/database"
	"github.com/phrazzld/tasknotify/internal/platform/smtp"
	"github.com/phrazzld/tasknotify/internal/preference"
	"github.com/phrazzld/tasknotify/internal/push"
	"github.com/phrazzld/tasknotify/internal/reminder"
	"github.com/phrazzld/tasknotify/internal/scheduler"
	"github.com/phrazzld/tasknotify/internal/service/auth"
	"github.com/phrazzld/tasknotify/internal/store"
	"github.com/phrazzld/tasknotify/internal/workflow"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sqlx.DB

	// Stores
	userStore         store.UserStore
	taskStore         store.TaskStore
	notificationStore store.NotificationStore
	emailJobStore     store.EmailJobStore

	// Services
	jwtService  auth.JWTService
	workflows   workflow.Service
	preferences *preference.Resolver
	mailer      *smtp.Mailer
	queue       *mailqueue.Queue
	hub         *push.Hub
	dispatcher  *notify.Dispatcher
	inbox       *notify.Inbox
	scanner     *reminder.Scanner

	// Event system
	eventEmitter *events.InMemoryEventEmitter
}

// openKeyring is replaced in tests.
var openKeyring = func(dir string) (credential.Getter, error) {
	return credential.Open(dir)
}

// newApplication wires every component over an open, migrated database.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sqlx.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := app.initAuth(); err != nil {
		return nil, err
	}

	app.userStore = database.NewSQLUserStore(db)
	app.taskStore = database.NewSQLTaskStore(db, logger)
	app.notificationStore = database.NewSQLNotificationStore(db, logger)
	app.emailJobStore = database.NewSQLEmailJobStore(db, logger)

	app.workflows = workflow.NewService(database.NewSQLWorkflowStore(db, logger), db, logger)
	app.preferences = preference.NewResolver(database.NewSQLPreferenceStore(db, logger), logger)

	password, err := smtpPassword(cfg.Email)
	if err != nil {
		return nil, err
	}
	app.mailer = smtp.New(cfg.Email, password, logger)
	app.queue = mailqueue.NewQueue(app.emailJobStore, cfg.Email, app.mailer, logger)
	logger.Info("email queue initialized",
		"delivery_enabled", cfg.Email.Configured(),
		"batch_size", cfg.Email.BatchSize)

	app.hub = push.NewHub(push.DefaultBuffer, logger)
	app.dispatcher = notify.NewDispatcher(notify.Dependencies{
		DB:            db,
		Notifications: app.notificationStore,
		Users:         app.userStore,
		Tasks:         app.taskStore,
		Preferences:   app.preferences,
		Queue:         app.queue,
		Pusher:        app.hub,
		BaseURL:       cfg.App.BaseURL,
	}, logger)
	app.inbox = notify.NewInbox(app.notificationStore, logger)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	app.scanner = reminder.NewScanner(
		app.userStore,
		app.taskStore,
		database.NewSQLReminderStore(db, logger),
		app.preferences,
		app.dispatcher,
		reminder.ScannerConfig{
			Location:         loc,
			TerminalStatuses: cfg.Reminders.TerminalStatuses,
		},
		logger,
	)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(notify.NewActivityHandler(app.dispatcher, logger))

	logger.Info("application initialized successfully")
	return app, nil
}

// initAuth creates the token service from the auth settings.
func (app *application) initAuth() error {
	jwtService, err := auth.NewJWTService(app.config.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	app.jwtService = jwtService
	return nil
}

// smtpPassword resolves the SMTP password, opening the keyring only when
// the configuration points at it.
func smtpPassword(cfg config.EmailConfig) (string, error) {
	password, err := credential.SMTPPassword(cfg, func() (credential.Getter, error) {
		return openKeyring(cfg.KeyringDir)
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve SMTP password: %w", err)
	}
	return password, nil
}

// seedWorkflow creates the default workflow on an empty database.
func (app *application) seedWorkflow(ctx context.Context) error {
	if _, err := workflow.Seed(ctx, app.workflows, app.config.Workflow.SeedFile, app.logger); err != nil {
		return fmt.Errorf("failed to seed default workflow: %w", err)
	}
	return nil
}

// newScheduler builds the periodic reminder scan and email drain.
func (app *application) newScheduler() *scheduler.Scheduler {
	cfg := app.config.Scheduler
	return scheduler.New(
		scheduler.Config{StartupDelay: cfg.StartupDelay, LockFile: cfg.LockFile},
		app.logger,
		scheduler.Job{
			Name:     "reminder_scan",
			Interval: cfg.ReminderInterval,
			Run: func(ctx context.Context) error {
				_, err := app.scanner.ScanDueSoonAndOverdue(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "email_drain",
			Interval: cfg.DrainInterval,
			Run: func(ctx context.Context) error {
				_, err := app.queue.Drain(ctx, 0)
				return err
			},
		},
	)
}

// reconfigure applies a reloaded configuration. Only email settings take
// effect without a restart.
func (app *application) reconfigure(cfg *config.Config) {
	password, err := smtpPassword(cfg.Email)
	if err != nil {
		app.logger.Error("keeping previous email settings", "error", err)
		return
	}
	app.mailer.Reconfigure(cfg.Email, password)
	app.queue.Reconfigure(cfg.Email, app.mailer)
	app.logger.Info("email settings reloaded", "delivery_enabled", cfg.Email.Configured())
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.dispatcher != nil {
		app.dispatcher.Wait()
	}
	if app.mailer != nil {
		if err := app.mailer.Close(); err != nil {
			app.logger.Warn("error closing SMTP session", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
