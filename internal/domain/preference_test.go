package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPreference(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	p := DefaultPreference(userID)

	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, 1, p.DueSoonDays)

	expected := map[NotificationType][2]bool{
		NotificationTaskAssigned:    {true, false},
		NotificationMentioned:       {true, false},
		NotificationStatusChanged:   {true, false},
		NotificationDueSoon:         {true, true},
		NotificationOverdue:         {true, true},
		NotificationPriorityChanged: {true, false},
		NotificationCommentAdded:    {true, false},
	}
	for typ, want := range expected {
		inApp, email := p.Channels(typ)
		assert.Equal(t, want[0], inApp, "in-app flag for %s", typ)
		assert.Equal(t, want[1], email, "email flag for %s", typ)
	}
	require.NoError(t, p.Validate())
}

func TestPreferencePatch_Changes(t *testing.T) {
	t.Parallel()

	yes, no, days := true, false, 3
	changes := PreferencePatch{
		TaskAssignedEmail: &yes,
		OverdueInApp:      &no,
		DueSoonDays:       &days,
	}.Changes()

	assert.Equal(t, []PreferenceChange{
		{Column: "task_assigned_email", Value: true},
		{Column: "overdue_in_app", Value: false},
		{Column: "due_soon_days", Value: 3},
	}, changes)
	assert.Empty(t, PreferencePatch{}.Changes())
}

func TestPreferencePatch_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, PreferencePatch{}.IsEmpty())
	v := true
	assert.False(t, PreferencePatch{DueSoonEmail: &v}.IsEmpty())
}

func TestNotificationPreference_ValidateNegativeDays(t *testing.T) {
	t.Parallel()

	p := DefaultPreference(uuid.New())
	p.DueSoonDays = -1
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}
