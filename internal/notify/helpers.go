package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// NotifyTaskAssignment tells the assignee they were given the task.
func (d *Dispatcher) NotifyTaskAssignment(
	ctx context.Context,
	taskID, assigneeID uuid.UUID,
	actorID *uuid.UUID,
) (*uuid.UUID, error) {
	task, err := d.deps.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	content := "You have been assigned to this task."
	if name := d.optionalActorName(ctx, actorID); name != "" {
		content = fmt.Sprintf("%s assigned this task to you.", name)
	}

	return d.dispatch(ctx, Event{
		UserID:   assigneeID,
		Type:     domain.NotificationTaskAssigned,
		Title:    task.Title,
		Content:  content,
		TaskID:   &task.ID,
		ActorID:  actorID,
		Metadata: domain.Metadata{"priority": task.Priority},
	}, task)
}

// NotifyStatusChange tells the task's assignee and creator that its status
// moved from one status to another. It returns the created notification IDs.
func (d *Dispatcher) NotifyStatusChange(
	ctx context.Context,
	taskID uuid.UUID,
	from, to string,
	actorID *uuid.UUID,
) ([]uuid.UUID, error) {
	task, err := d.deps.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	return d.notifyWatchers(ctx, task, nil, Event{
		Type:     domain.NotificationStatusChanged,
		Title:    task.Title,
		Content:  fmt.Sprintf("Status changed from %s to %s.", from, to),
		TaskID:   &task.ID,
		ActorID:  actorID,
		Metadata: domain.Metadata{"from": from, "to": to},
	})
}

// NotifyPriorityChange tells the task's assignee and creator that its
// priority changed.
func (d *Dispatcher) NotifyPriorityChange(
	ctx context.Context,
	taskID uuid.UUID,
	from, to string,
	actorID *uuid.UUID,
) ([]uuid.UUID, error) {
	task, err := d.deps.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	content := fmt.Sprintf("Priority changed to %s.", to)
	if from != "" {
		content = fmt.Sprintf("Priority changed from %s to %s.", from, to)
	}
	return d.notifyWatchers(ctx, task, nil, Event{
		Type:     domain.NotificationPriorityChanged,
		Title:    task.Title,
		Content:  content,
		TaskID:   &task.ID,
		ActorID:  actorID,
		Metadata: domain.Metadata{"from": from, "to": to},
	})
}

// NotifyComment tells the task's assignee and creator about a new comment.
// Users in skip, typically those already notified of a mention in the same
// comment, are left out.
func (d *Dispatcher) NotifyComment(
	ctx context.Context,
	taskID uuid.UUID,
	body string,
	actorID *uuid.UUID,
	skip map[uuid.UUID]bool,
) ([]uuid.UUID, error) {
	task, err := d.deps.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	return d.notifyWatchers(ctx, task, skip, Event{
		Type:    domain.NotificationCommentAdded,
		Title:   task.Title,
		Content: Snippet(body, 0, 0, commentPreviewLength),
		TaskID:  &task.ID,
		ActorID: actorID,
	})
}

// NotifyDueDate sends a due-soon or overdue reminder about task to userID.
func (d *Dispatcher) NotifyDueDate(
	ctx context.Context,
	task *domain.Task,
	userID uuid.UUID,
	kind domain.ReminderType,
	today time.Time,
) (*uuid.UUID, error) {
	var (
		typ     domain.NotificationType
		content string
	)
	due := "soon"
	if task.DueDate != nil {
		due = task.DueDate.In(today.Location()).Format(time.DateOnly)
	}
	switch kind {
	case domain.ReminderDueSoon:
		typ = domain.NotificationDueSoon
		content = fmt.Sprintf("This task is due on %s.", due)
	case domain.ReminderOverdue:
		typ = domain.NotificationOverdue
		content = fmt.Sprintf("This task was due on %s and is overdue.", due)
	default:
		return nil, domain.NewValidationError("reminderType", fmt.Sprintf("unknown reminder type %q", kind))
	}

	return d.dispatch(ctx, Event{
		UserID:   userID,
		Type:     typ,
		Title:    task.Title,
		Content:  content,
		TaskID:   &task.ID,
		Metadata: domain.Metadata{"dueDate": due, "reminderDate": domain.DateKey(today)},
	}, task)
}

// notifyWatchers dispatches a copy of ev to the task's assignee and creator,
// once each. A failure for one recipient does not stop the other.
func (d *Dispatcher) notifyWatchers(
	ctx context.Context,
	task *domain.Task,
	skip map[uuid.UUID]bool,
	ev Event,
) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	var firstErr error
	seen := map[uuid.UUID]bool{}

	for _, userID := range []*uuid.UUID{task.AssigneeID, task.CreatorID} {
		if userID == nil || seen[*userID] || skip[*userID] {
			continue
		}
		seen[*userID] = true

		ev.UserID = *userID
		id, err := d.dispatch(ctx, ev, task)
		if err != nil {
			d.logger.Error("failed to notify task watcher",
				"error", err,
				"task_id", task.ID,
				"user_id", *userID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if id != nil {
			ids = append(ids, *id)
		}
	}
	return ids, firstErr
}

func (d *Dispatcher) optionalActorName(ctx context.Context, actorID *uuid.UUID) string {
	if actorID == nil {
		return ""
	}
	return d.actorName(ctx, *actorID)
}
