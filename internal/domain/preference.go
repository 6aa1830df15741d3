package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDueSoonDays is how many days ahead due-soon reminders look by default.
const DefaultDueSoonDays = 1

// NotificationPreference holds one user's delivery choices per event type
// and channel. There is exactly one record per user.
type NotificationPreference struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	UserID             uuid.UUID `json:"userId" db:"user_id"`
	TaskAssignedInApp  bool      `json:"taskAssignedInApp" db:"task_assigned_in_app"`
	TaskAssignedEmail  bool      `json:"taskAssignedEmail" db:"task_assigned_email"`
	MentionedInApp     bool      `json:"mentionedInApp" db:"mentioned_in_app"`
	MentionedEmail     bool      `json:"mentionedEmail" db:"mentioned_email"`
	StatusChangedInApp bool      `json:"statusChangedInApp" db:"status_changed_in_app"`
	StatusChangedEmail bool      `json:"statusChangedEmail" db:"status_changed_email"`
	DueSoonInApp       bool      `json:"dueSoonInApp" db:"due_soon_in_app"`
	DueSoonEmail       bool      `json:"dueSoonEmail" db:"due_soon_email"`
	OverdueInApp       bool      `json:"overdueInApp" db:"overdue_in_app"`
	OverdueEmail       bool      `json:"overdueEmail" db:"overdue_email"`
	DueSoonDays        int       `json:"dueSoonDays" db:"due_soon_days"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}

// DefaultPreference returns the fixed default preference set for a user.
func DefaultPreference(userID uuid.UUID) NotificationPreference {
	now := time.Now().UTC()
	return NotificationPreference{
		ID:                 uuid.New(),
		UserID:             userID,
		TaskAssignedInApp:  true,
		TaskAssignedEmail:  false,
		MentionedInApp:     true,
		MentionedEmail:     false,
		StatusChangedInApp: true,
		StatusChangedEmail: false,
		DueSoonInApp:       true,
		DueSoonEmail:       true,
		OverdueInApp:       true,
		OverdueEmail:       true,
		DueSoonDays:        DefaultDueSoonDays,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Channels maps a notification type to its in-app and email flags.
// Priority changes and comments have no preference fields: they are always
// delivered in-app and only emailed when the caller forces it.
func (p NotificationPreference) Channels(t NotificationType) (inApp, email bool) {
	switch t {
	case NotificationTaskAssigned:
		return p.TaskAssignedInApp, p.TaskAssignedEmail
	case NotificationMentioned:
		return p.MentionedInApp, p.MentionedEmail
	case NotificationStatusChanged:
		return p.StatusChangedInApp, p.StatusChangedEmail
	case NotificationDueSoon:
		return p.DueSoonInApp, p.DueSoonEmail
	case NotificationOverdue:
		return p.OverdueInApp, p.OverdueEmail
	default:
		return true, false
	}
}

// Validate checks if the NotificationPreference has valid data.
func (p NotificationPreference) Validate() error {
	if p.UserID == uuid.Nil {
		return NewValidationError("userId", "must not be empty")
	}
	if p.DueSoonDays < 0 {
		return NewValidationError("dueSoonDays", "must be zero or greater")
	}
	return nil
}

// PreferencePatch is a partial update: nil fields are left untouched.
type PreferencePatch struct {
	TaskAssignedInApp  *bool `json:"taskAssignedInApp,omitempty"`
	TaskAssignedEmail  *bool `json:"taskAssignedEmail,omitempty"`
	MentionedInApp     *bool `json:"mentionedInApp,omitempty"`
	MentionedEmail     *bool `json:"mentionedEmail,omitempty"`
	StatusChangedInApp *bool `json:"statusChangedInApp,omitempty"`
	StatusChangedEmail *bool `json:"statusChangedEmail,omitempty"`
	DueSoonInApp       *bool `json:"dueSoonInApp,omitempty"`
	DueSoonEmail       *bool `json:"dueSoonEmail,omitempty"`
	OverdueInApp       *bool `json:"overdueInApp,omitempty"`
	OverdueEmail       *bool `json:"overdueEmail,omitempty"`
	DueSoonDays        *int  `json:"dueSoonDays,omitempty" validate:"omitempty,gte=0,lte=365"`
}

// IsEmpty reports whether the patch changes nothing.
func (pp PreferencePatch) IsEmpty() bool {
	return pp == PreferencePatch{}
}

// PreferenceChange is one field set by a patch, named by its column.
type PreferenceChange struct {
	Column string
	Value  any
}

// Changes lists the fields the patch sets, in a fixed order. Fields left
// nil are absent, so applying the changes touches nothing else.
func (pp PreferencePatch) Changes() []PreferenceChange {
	flags := []struct {
		column string
		value  *bool
	}{
		{"task_assigned_in_app", pp.TaskAssignedInApp},
		{"task_assigned_email", pp.TaskAssignedEmail},
		{"mentioned_in_app", pp.MentionedInApp},
		{"mentioned_email", pp.MentionedEmail},
		{"status_changed_in_app", pp.StatusChangedInApp},
		{"status_changed_email", pp.StatusChangedEmail},
		{"due_soon_in_app", pp.DueSoonInApp},
		{"due_soon_email", pp.DueSoonEmail},
		{"overdue_in_app", pp.OverdueInApp},
		{"overdue_email", pp.OverdueEmail},
	}

	var changes []PreferenceChange
	for _, f := range flags {
		if f.value != nil {
			changes = append(changes, PreferenceChange{Column: f.column, Value: *f.value})
		}
	}
	if pp.DueSoonDays != nil {
		changes = append(changes, PreferenceChange{Column: "due_soon_days", Value: *pp.DueSoonDays})
	}
	return changes
}
