package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/store"
)

const (
	// snippetRadius is how many characters of context surround a mention.
	snippetRadius = 50
	// commentPreviewLength caps the comment text copied into a notification.
	commentPreviewLength = 200
)

// mentionPattern matches @[Display Name] and @token. The leading group
// keeps addresses such as bob@example.com from reading as mentions.
var mentionPattern = regexp.MustCompile(
	`(?:^|[^A-Za-z0-9_])@(?:\[([^\]]+)\]|([A-Za-z0-9_][A-Za-z0-9_.+\-@]*))`)

// Mention is one @mention found in text. Start and End are rune offsets of
// the whole token, including the @.
type Mention struct {
	Token string
	Start int
	End   int
}

// ParseMentions returns the mentions in text in order of appearance.
func ParseMentions(text string) []Mention {
	var mentions []Mention
	for _, m := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		var tokStart, tokEnd int
		switch {
		case m[2] >= 0:
			tokStart, tokEnd = m[2], m[3]
		case m[4] >= 0:
			tokStart, tokEnd = m[4], m[5]
		default:
			continue
		}

		token := text[tokStart:tokEnd]
		closeLen := 0
		if m[2] >= 0 {
			token = strings.TrimSpace(token)
			closeLen = 1
		} else {
			trimmed := strings.TrimRight(token, ".-")
			tokEnd -= len(token) - len(trimmed)
			token = trimmed
		}
		if token == "" {
			continue
		}

		at := strings.LastIndex(text[:tokStart], "@")
		mentions = append(mentions, Mention{
			Token: token,
			Start: runeOffset(text, at),
			End:   runeOffset(text, tokEnd+closeLen),
		})
	}
	return mentions
}

func runeOffset(s string, byteOffset int) int {
	return len([]rune(s[:byteOffset]))
}

// Snippet returns the text within radius characters of [start, end), with
// whitespace collapsed and an ellipsis marking each cut side.
func Snippet(text string, start, end, radius int) string {
	runes := []rune(text)
	from := max(start-radius, 0)
	to := min(end+radius, len(runes))

	s := strings.Join(strings.FieldsFunc(string(runes[from:to]), unicode.IsSpace), " ")
	if from > 0 {
		s = "..." + s
	}
	if to < len(runes) {
		s += "..."
	}
	return s
}

// ResolveMention finds the active users a token refers to. A token matches
// a user ID, an exact email address or an exact name; matching is literal.
func (d *Dispatcher) ResolveMention(ctx context.Context, token string) ([]*domain.User, error) {
	if id, err := uuid.Parse(token); err == nil {
		u, err := d.deps.Users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return activeOnly([]*domain.User{u}), nil
	}

	if strings.Contains(token, "@") {
		u, err := d.deps.Users.FindByEmail(ctx, token)
		if err == nil {
			return activeOnly([]*domain.User{u}), nil
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return nil, err
		}
	}

	users, err := d.deps.Users.FindByName(ctx, token)
	if err != nil {
		return nil, err
	}
	return activeOnly(users), nil
}

func activeOnly(users []*domain.User) []*domain.User {
	out := users[:0]
	for _, u := range users {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out
}

// NotifyMention tells userID they were mentioned on a task, with the
// surrounding text as content.
func (d *Dispatcher) NotifyMention(
	ctx context.Context,
	userID, taskID uuid.UUID,
	actorID *uuid.UUID,
	snippet string,
) (*uuid.UUID, error) {
	task, err := d.deps.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	title := "You were mentioned on " + task.Title
	if name := d.optionalActorName(ctx, actorID); name != "" {
		title = name + " mentioned you on " + task.Title
	}
	return d.dispatch(ctx, Event{
		UserID:   userID,
		Type:     domain.NotificationMentioned,
		Title:    title,
		Content:  snippet,
		TaskID:   &task.ID,
		ActorID:  actorID,
		Metadata: domain.Metadata{"snippet": snippet},
	}, task)
}

// ProcessMentions notifies every user mentioned in text, each at most once
// per call, and returns the IDs of the users mentioned other than the actor. Unresolvable tokens
// are ignored; a failure for one user does not stop the rest.
func (d *Dispatcher) ProcessMentions(
	ctx context.Context,
	text string,
	taskID uuid.UUID,
	actorID *uuid.UUID,
) ([]uuid.UUID, error) {
	var (
		mentioned []uuid.UUID
		firstErr  error
	)
	seen := map[uuid.UUID]bool{}

	for _, m := range ParseMentions(text) {
		users, err := d.ResolveMention(ctx, m.Token)
		if err != nil {
			d.logger.Error("failed to resolve mention", "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, u := range users {
			if seen[u.ID] || (actorID != nil && u.ID == *actorID) {
				continue
			}
			seen[u.ID] = true
			mentioned = append(mentioned, u.ID)

			snippet := Snippet(text, m.Start, m.End, snippetRadius)
			if _, err := d.NotifyMention(ctx, u.ID, taskID, actorID, snippet); err != nil {
				d.logger.Error("failed to notify mention",
					"error", err,
					"user_id", u.ID,
					"task_id", taskID)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return mentioned, firstErr
}
