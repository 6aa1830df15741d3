package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/events"
	"github.com/phrazzld/tasknotify/internal/notify"
	"github.com/phrazzld/tasknotify/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emit(t *testing.T, f *fixture, ev *events.ActivityEvent) error {
	t.Helper()
	emitter := events.NewInMemoryEventEmitter(testdb.DiscardLogger())
	emitter.RegisterHandler(notify.NewActivityHandler(f.dispatcher, testdb.DiscardLogger()))
	return emitter.EmitEvent(context.Background(), ev)
}

func TestActivityHandler_StatusChanged(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	creator := testdb.CreateUser(t, f.db, "creator", "", "")
	assignee := testdb.CreateUser(t, f.db, "assignee", "", "")
	task := testdb.CreateTask(t, f.db, testdb.TaskFixture{
		Title:      "Write docs",
		AssigneeID: &assignee.ID,
		CreatorID:  &creator.ID,
	})

	ev, err := events.NewActivityEvent(events.ActivityStatusChanged, task.ID, &assignee.ID, "member",
		events.StatusChangedPayload{From: "pending", To: "in_progress"})
	require.NoError(t, err)
	require.NoError(t, emit(t, f, ev))

	assert.Empty(t, f.inbox(t, assignee.ID), "actor is not notified")
	inbox := f.inbox(t, creator.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationStatusChanged, inbox[0].Type)
	assert.Equal(t, "Status changed from pending to in_progress.", inbox[0].Content)
	assert.Equal(t, "in_progress", inbox[0].Metadata["to"])
}

func TestActivityHandler_SameAssigneeAndCreatorNotifiedOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := testdb.CreateUser(t, f.db, "owner", "", "")
	task := testdb.CreateTask(t, f.db, testdb.TaskFixture{AssigneeID: &owner.ID, CreatorID: &owner.ID})

	ev, err := events.NewActivityEvent(events.ActivityPriorityChanged, task.ID, nil, "",
		events.PriorityChangedPayload{From: "low", To: "high"})
	require.NoError(t, err)
	require.NoError(t, emit(t, f, ev))

	inbox := f.inbox(t, owner.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationPriorityChanged, inbox[0].Type)
	assert.Equal(t, "Priority changed from low to high.", inbox[0].Content)
}

func TestActivityHandler_Assigned(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	manager := testdb.CreateUser(t, f.db, "Manager Mo", "", "manager")
	dev := testdb.CreateUser(t, f.db, "dev", "dev@example.com", "")
	task := testdb.CreateTask(t, f.db, testdb.TaskFixture{Title: "Refactor", Priority: "high"})
	f.setPrefs(t, dev.ID, domain.PreferencePatch{TaskAssignedEmail: boolPtr(true)})

	ev, err := events.NewActivityEvent(events.ActivityAssigned, task.ID, &manager.ID, "manager",
		events.AssignedPayload{AssigneeID: dev.ID})
	require.NoError(t, err)
	require.NoError(t, emit(t, f, ev))

	inbox := f.inbox(t, dev.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Manager Mo assigned this task to you.", inbox[0].Content)

	jobs := f.emailJobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Task Assigned: Refactor", jobs[0].Subject)
	assert.Contains(t, jobs[0].TextBody, "By Manager Mo")
}

func TestActivityHandler_CommentSkipsMentioned(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	author := testdb.CreateUser(t, f.db, "author", "", "")
	assignee := testdb.CreateUser(t, f.db, "assignee", "", "")
	creator := testdb.CreateUser(t, f.db, "creator", "", "")
	task := testdb.CreateTask(t, f.db, testdb.TaskFixture{AssigneeID: &assignee.ID, CreatorID: &creator.ID})

	ev, err := events.NewActivityEvent(events.ActivityCommentAdded, task.ID, &author.ID, "member",
		events.CommentAddedPayload{Body: "@assignee can you take a look?"})
	require.NoError(t, err)
	require.NoError(t, emit(t, f, ev))

	assigneeInbox := f.inbox(t, assignee.ID)
	require.Len(t, assigneeInbox, 1)
	assert.Equal(t, domain.NotificationMentioned, assigneeInbox[0].Type)

	creatorInbox := f.inbox(t, creator.ID)
	require.Len(t, creatorInbox, 1)
	assert.Equal(t, domain.NotificationCommentAdded, creatorInbox[0].Type)
	assert.Equal(t, "@assignee can you take a look?", creatorInbox[0].Content)
}

func TestActivityHandler_InvalidPayload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	task := testdb.CreateTask(t, f.db, testdb.TaskFixture{})
	ev, err := events.NewActivityEvent(events.ActivityStatusChanged, task.ID, nil, "",
		events.StatusChangedPayload{From: "pending"})
	require.NoError(t, err)

	err = emit(t, f, ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNotifyDueDate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	user := testdb.CreateUser(t, f.db, "due", "due@example.com", "")
	due := time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)
	task := testdb.CreateTask(t, f.db, testdb.TaskFixture{Title: "Taxes", DueDate: &due, AssigneeID: &user.ID})
	today := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	id, err := f.dispatcher.NotifyDueDate(context.Background(), task, user.ID, domain.ReminderDueSoon, today)
	require.NoError(t, err)
	require.NotNil(t, id)

	inbox := f.inbox(t, user.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationDueSoon, inbox[0].Type)
	assert.Equal(t, "This task is due on 2026-05-02.", inbox[0].Content)
	assert.Equal(t, "2026-05-01", inbox[0].Metadata["reminderDate"])

	jobs := f.emailJobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Task Due Soon: Taxes", jobs[0].Subject)

	_, err = f.dispatcher.NotifyDueDate(context.Background(), task, user.ID, "weekly", today)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
