package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReminderType identifies which scheduled scan produced a reminder.
type ReminderType string

// Possible reminder types
const (
	ReminderDueSoon ReminderType = "due_soon"
	ReminderOverdue ReminderType = "overdue"
)

// DateLayout is the calendar-date format used for reminder dates.
const DateLayout = "2006-01-02"

// DueDateReminder marks that a user has already been reminded about a task
// for a given type and date. Rows are never updated.
type DueDateReminder struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	TaskID       uuid.UUID    `json:"taskId" db:"task_id"`
	UserID       uuid.UUID    `json:"userId" db:"user_id"`
	ReminderType ReminderType `json:"reminderType" db:"reminder_type"`
	ReminderDate string       `json:"reminderDate" db:"reminder_date"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
}

// NewDueDateReminder builds the dedupe marker for (task, user, type, date).
func NewDueDateReminder(taskID, userID uuid.UUID, t ReminderType, date time.Time) *DueDateReminder {
	return &DueDateReminder{
		ID:           uuid.New(),
		TaskID:       taskID,
		UserID:       userID,
		ReminderType: t,
		ReminderDate: DateKey(date),
		CreatedAt:    time.Now().UTC(),
	}
}

// DateKey formats the calendar date of t in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
