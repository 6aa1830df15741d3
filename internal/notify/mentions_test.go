package notify_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/notify"
	"github.com/phrazzld/tasknotify/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens(mentions []notify.Mention) []string {
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		out = append(out, m.Token)
	}
	return out
}

func TestParseMentions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single", "ping @alice please review", []string{"alice"}},
		{"start of text", "@bob look", []string{"bob"}},
		{"bracketed name", "thanks @[Carol Smith]!", []string{"Carol Smith"}},
		{"email token", "cc @dave@example.com.", []string{"dave@example.com"}},
		{"plain email is not a mention", "write to erin@example.com", []string{}},
		{"trailing punctuation", "ok @frank.", []string{"frank"}},
		{"several", "@a and @b, also @a", []string{"a", "b", "a"}},
		{"bare at sign", "meet @ noon", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tokens(notify.ParseMentions(tc.text)))
		})
	}
}

func TestParseMentions_Offsets(t *testing.T) {
	t.Parallel()

	text := "héllo @[Zoë K] done"
	mentions := notify.ParseMentions(text)
	require.Len(t, mentions, 1)
	runes := []rune(text)
	assert.Equal(t, "@[Zoë K]", string(runes[mentions[0].Start:mentions[0].End]))
}

func TestSnippet(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ping @alice please", notify.Snippet("ping   @alice\nplease", 5, 11, 50))

	long := strings.Repeat("a", 80) + " @bob " + strings.Repeat("b", 80)
	s := notify.Snippet(long, 81, 85, 10)
	assert.True(t, strings.HasPrefix(s, "..."))
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.Contains(t, s, "@bob")
}

func TestProcessMentions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	actor := testdb.CreateUser(t, f.db, "zed", "zed@example.com", "")
	alice := testdb.CreateUser(t, f.db, "alice", "alice@example.com", "")
	bob := testdb.CreateUser(t, f.db, "Bob Jones", "bob@example.com", "")
	inactive := testdb.CreateUser(t, f.db, "ghost", "ghost@example.com", "")
	_, err := f.db.Exec(f.db.Rebind(`UPDATE users SET is_active = FALSE WHERE id = ?`), inactive.ID)
	require.NoError(t, err)
	task := testdb.CreateTask(t, f.db, testdb.TaskFixture{Title: "Launch plan"})

	text := "ping @alice please review, @[Bob Jones] too. " +
		"Also @alice again, @ghost, @nobody, @" + bob.ID.String() + " and @zed."
	mentioned, err := f.dispatcher.ProcessMentions(ctx, text, task.ID, &actor.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, mentioned)

	aliceInbox := f.inbox(t, alice.ID)
	require.Len(t, aliceInbox, 1, "one notification per user per call")
	n := aliceInbox[0]
	assert.Equal(t, domain.NotificationMentioned, n.Type)
	assert.Equal(t, "zed mentioned you on Launch plan", n.Title)
	assert.Contains(t, n.Content, "ping @alice please review")
	require.NotNil(t, n.TaskID)
	assert.Equal(t, task.ID, *n.TaskID)

	assert.Len(t, f.inbox(t, bob.ID), 1)
	assert.Empty(t, f.inbox(t, inactive.ID))
	assert.Empty(t, f.inbox(t, actor.ID), "self mention is suppressed")
}

func TestResolveMention_ByEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u := testdb.CreateUser(t, f.db, "Mia", "mia@example.com", "")
	users, err := f.dispatcher.ResolveMention(context.Background(), "mia@example.com")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)

	users, err = f.dispatcher.ResolveMention(context.Background(), "MIA@example.com")
	require.NoError(t, err)
	assert.Empty(t, users, "matching is literal")
}
