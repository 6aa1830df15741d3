package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

// Event is one notification request for one user.
type Event struct {
	UserID     uuid.UUID               `validate:"required"`
	Type       domain.NotificationType `validate:"required"`
	Title      string                  `validate:"required,max=255"`
	Content    string
	TaskID     *uuid.UUID
	ActorID    *uuid.UUID
	Metadata   domain.Metadata
	ForceEmail bool
}

// PreferenceResolver returns a user's notification preferences.
type PreferenceResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (domain.NotificationPreference, error)
}

// Enqueuer adds an email job to the delivery queue inside a transaction.
type Enqueuer interface {
	EnqueueTx(ctx context.Context, tx *sqlx.Tx, job *domain.EmailJob) error
}

// Pusher delivers a live notification to a connected user. It must not
// block.
type Pusher interface {
	PushToUser(userID uuid.UUID, summary domain.NotificationSummary)
}

// Dependencies are the collaborators of a Dispatcher. Pusher may be nil.
type Dependencies struct {
	DB            *sqlx.DB
	Notifications store.NotificationStore
	Users         store.UserStore
	Tasks         store.TaskStore
	Preferences   PreferenceResolver
	Queue         Enqueuer
	Pusher        Pusher
	// BaseURL is prefixed to task links in emails.
	BaseURL string
}

// Dispatcher creates in-app notifications and queues notification emails.
type Dispatcher struct {
	deps     Dependencies
	validate *validator.Validate
	logger   *slog.Logger
	pushes   sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(deps Dependencies, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		deps:     deps,
		validate: validator.New(),
		logger:   logger.With("component", "notification_dispatcher"),
	}
}

// Dispatch delivers ev according to the recipient's preferences and
// returns the ID of the in-app notification, or nil when none was created.
// It returns nil without side effects when the actor is the recipient or
// both channels are disabled.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (*uuid.UUID, error) {
	return d.dispatch(ctx, ev, nil)
}

// dispatch is Dispatch with the task optionally preloaded.
func (d *Dispatcher) dispatch(ctx context.Context, ev Event, task *domain.Task) (*uuid.UUID, error) {
	if err := d.validate.Struct(ev); err != nil {
		return nil, eventValidationError(err)
	}
	if !ev.Type.IsValid() {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown notification type %q", ev.Type))
	}

	log := d.logger.With("user_id", ev.UserID, "type", ev.Type)

	if ev.ActorID != nil && *ev.ActorID == ev.UserID {
		log.Debug("suppressed self notification")
		return nil, nil
	}

	pref, err := d.deps.Preferences.Resolve(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preferences: %w", err)
	}
	inApp, email := pref.Channels(ev.Type)
	email = email || ev.ForceEmail
	if !inApp && !email {
		log.Debug("all channels disabled")
		return nil, nil
	}

	var rendered *Rendered
	var recipient *domain.User
	if email {
		recipient, rendered, err = d.prepareEmail(ctx, ev, task)
		if err != nil {
			return nil, err
		}
	}

	var notification *domain.Notification
	if inApp {
		notification, err = domain.NewNotification(
			ev.UserID, ev.Type, ev.Title, ev.Content, ev.TaskID, ev.ActorID, ev.Metadata)
		if err != nil {
			return nil, err
		}
	}

	err = store.RunInTransaction(ctx, d.deps.DB, func(ctx context.Context, tx *sqlx.Tx) error {
		var notificationID *uuid.UUID
		if notification != nil {
			if err := d.deps.Notifications.WithTx(tx).Create(ctx, notification); err != nil {
				return err
			}
			notificationID = &notification.ID
		}
		if rendered == nil {
			return nil
		}
		job, err := domain.NewEmailJob(
			recipient.Email, recipient.DisplayName(),
			rendered.Subject, rendered.HTML, rendered.Text,
			notificationID)
		if err != nil {
			return err
		}
		return d.deps.Queue.EnqueueTx(ctx, tx, job)
	})
	if err != nil {
		log.Error("failed to dispatch notification", "error", err)
		return nil, fmt.Errorf("failed to dispatch notification: %w", err)
	}

	log.Debug("notification dispatched",
		"in_app", notification != nil,
		"email", rendered != nil)

	if notification == nil {
		return nil, nil
	}
	d.push(ev.UserID, notification.Summary())
	id := notification.ID
	return &id, nil
}

// prepareEmail resolves the recipient and renders the email. It returns a
// nil rendering when the recipient has no address.
func (d *Dispatcher) prepareEmail(
	ctx context.Context,
	ev Event,
	task *domain.Task,
) (*domain.User, *Rendered, error) {
	recipient, err := d.deps.Users.GetByID(ctx, ev.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load recipient: %w", err)
	}
	if recipient.Email == "" {
		d.logger.Warn("recipient has no email address", "user_id", ev.UserID)
		return recipient, nil, nil
	}

	if task == nil && ev.TaskID != nil {
		task, err = d.deps.Tasks.GetByID(ctx, *ev.TaskID)
		if err != nil && !errors.Is(err, store.ErrTaskNotFound) {
			return nil, nil, fmt.Errorf("failed to load task: %w", err)
		}
	}

	data := TemplateData{
		Type:    ev.Type,
		Title:   ev.Title,
		Content: ev.Content,
	}
	if task != nil {
		data.Task = task.Summary()
		data.TaskURL = TaskURL(d.deps.BaseURL, data.Task)
	}
	if ev.ActorID != nil {
		data.ActorName = d.actorName(ctx, *ev.ActorID)
	}

	rendered, err := RenderTemplate(data)
	if err != nil {
		return nil, nil, err
	}
	return recipient, &rendered, nil
}

// actorName returns the actor's display name, or "" if it cannot be read.
func (d *Dispatcher) actorName(ctx context.Context, actorID uuid.UUID) string {
	actor, err := d.deps.Users.GetByID(ctx, actorID)
	if err != nil {
		return ""
	}
	return actor.DisplayName()
}

func (d *Dispatcher) push(userID uuid.UUID, summary domain.NotificationSummary) {
	if d.deps.Pusher == nil {
		return
	}
	d.pushes.Add(1)
	go func() {
		defer d.pushes.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("push panicked", "user_id", userID, "panic", r)
			}
		}()
		d.deps.Pusher.PushToUser(userID, summary)
	}()
}

// Wait blocks until in-flight pushes have returned.
func (d *Dispatcher) Wait() {
	d.pushes.Wait()
}

func eventValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return domain.NewValidationError(verrs[0].Field(),
			fmt.Sprintf("failed on '%s' validation", verrs[0].Tag()))
	}
	return domain.NewValidationError("", err.Error())
}
