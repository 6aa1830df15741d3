package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

// DefaultTerminalStatuses are the task statuses that never get reminders
// when none are configured.
var DefaultTerminalStatuses = []string{"completed", "cancelled"}

// Notifier sends one due-date reminder.
type Notifier interface {
	NotifyDueDate(
		ctx context.Context,
		task *domain.Task,
		userID uuid.UUID,
		kind domain.ReminderType,
		today time.Time,
	) (*uuid.UUID, error)
}

// PreferenceResolver returns a user's notification preferences.
type PreferenceResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (domain.NotificationPreference, error)
}

// ScannerConfig holds the settings of a Scanner.
type ScannerConfig struct {
	// Location decides where calendar days begin. Defaults to UTC.
	Location *time.Location

	// TerminalStatuses excludes tasks in these statuses.
	// Defaults to DefaultTerminalStatuses.
	TerminalStatuses []string
}

// ScanResult summarizes one scan.
type ScanResult struct {
	Users   int `json:"users"`
	DueSoon int `json:"dueSoon"`
	Overdue int `json:"overdue"`
	// Skipped counts reminders another scan already sent.
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Scanner runs the due-date reminder scan.
type Scanner struct {
	users     store.UserStore
	tasks     store.TaskStore
	reminders store.ReminderStore
	prefs     PreferenceResolver
	notifier  Notifier
	config    ScannerConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewScanner creates a Scanner.
func NewScanner(
	users store.UserStore,
	tasks store.TaskStore,
	reminders store.ReminderStore,
	prefs PreferenceResolver,
	notifier Notifier,
	config ScannerConfig,
	logger *slog.Logger,
) *Scanner {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.TerminalStatuses == nil {
		config.TerminalStatuses = DefaultTerminalStatuses
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		users:     users,
		tasks:     tasks,
		reminders: reminders,
		prefs:     prefs,
		notifier:  notifier,
		config:    config,
		logger:    logger.With("component", "reminder_scanner"),
		now:       time.Now,
	}
}

// SetClock replaces the scanner's time source.
func (s *Scanner) SetClock(now func() time.Time) {
	s.now = now
}

// ScanDueSoonAndOverdue notifies every active user about their open tasks
// that fall due on today plus their due-soon window, or were due before
// today. A failure for one user or task is logged and the scan continues.
// An error is returned only when the user list cannot be read.
func (s *Scanner) ScanDueSoonAndOverdue(ctx context.Context) (ScanResult, error) {
	var result ScanResult

	today := domain.StartOfDay(s.now(), s.config.Location)

	users, err := s.users.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list active users: %w", err)
	}

	s.logger.Info("starting reminder scan",
		"date", domain.DateKey(today),
		"users", len(users))

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("reminder scan interrupted", "error", err)
			break
		}
		result.Users++
		s.scanUser(ctx, user, today, &result)
	}

	s.logger.Info("reminder scan finished",
		"users", result.Users,
		"due_soon", result.DueSoon,
		"overdue", result.Overdue,
		"skipped", result.Skipped,
		"errors", result.Errors)
	return result, nil
}

func (s *Scanner) scanUser(ctx context.Context, user *domain.User, today time.Time, result *ScanResult) {
	log := s.logger.With("user_id", user.ID)

	pref, err := s.prefs.Resolve(ctx, user.ID)
	if err != nil {
		log.Error("failed to resolve preferences", "error", err)
		result.Errors++
		return
	}

	dueSoon := pref.DueSoonInApp || pref.DueSoonEmail
	overdue := pref.OverdueInApp || pref.OverdueEmail
	if !dueSoon && !overdue {
		return
	}

	tasks, err := s.tasks.ListOpenDueForAssignee(ctx, user.ID, s.config.TerminalStatuses)
	if err != nil {
		log.Error("failed to list tasks", "error", err)
		result.Errors++
		return
	}

	threshold := today.AddDate(0, 0, pref.DueSoonDays)
	for _, task := range tasks {
		if task.DueDate == nil {
			continue
		}
		dueDay := domain.StartOfDay(*task.DueDate, s.config.Location)

		switch {
		case dueSoon && dueDay.Equal(threshold):
			if s.remind(ctx, task, user.ID, domain.ReminderDueSoon, threshold, today, result) {
				result.DueSoon++
			}
		case overdue && dueDay.Before(today):
			if s.remind(ctx, task, user.ID, domain.ReminderOverdue, today, today, result) {
				result.Overdue++
			}
		}
	}
}

// remind claims the dedupe marker for the reminder and, if this scan won
// it, sends the notification. The marker is released when sending fails so
// that a later scan retries.
func (s *Scanner) remind(
	ctx context.Context,
	task *domain.Task,
	userID uuid.UUID,
	kind domain.ReminderType,
	reminderDate, today time.Time,
	result *ScanResult,
) bool {
	log := s.logger.With(
		"task_id", task.ID,
		"user_id", userID,
		"reminder_type", kind,
		"reminder_date", domain.DateKey(reminderDate))

	marker := domain.NewDueDateReminder(task.ID, userID, kind, reminderDate)
	claimed, err := s.reminders.Claim(ctx, marker)
	if err != nil {
		log.Error("failed to claim reminder", "error", err)
		result.Errors++
		return false
	}
	if !claimed {
		result.Skipped++
		return false
	}

	if _, err := s.notifier.NotifyDueDate(ctx, task, userID, kind, today); err != nil {
		log.Error("failed to send reminder", "error", err)
		result.Errors++
		if relErr := s.reminders.Release(context.WithoutCancel(ctx), marker); relErr != nil {
			log.Error("failed to release reminder", "error", relErr)
		}
		return false
	}

	log.Debug("reminder sent")
	return true
}
