package smtp

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	t.Parallel()

	from := &mail.Address{Name: "Tasks", Address: "noreply@example.com"}
	raw, err := Compose(from, Message{
		ToEmail: "alice@example.com",
		ToName:  "Alice",
		Subject: "Task assigned: Ship it",
		HTML:    "<p>Ship it</p>",
		Text:    "Ship it",
	}, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	r, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Task assigned: Ship it", subject)

	to, err := r.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "alice@example.com", to[0].Address)

	id, err := r.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var types []string
	var bodies []string
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		h, ok := p.Header.(*mail.InlineHeader)
		require.True(t, ok)
		ct, _, err := h.ContentType()
		require.NoError(t, err)
		types = append(types, ct)
		b, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"text/plain", "text/html"}, types)
	assert.Equal(t, []string{"Ship it", "<p>Ship it</p>"}, bodies)
}

func TestCompose_TextOnly(t *testing.T) {
	t.Parallel()

	raw, err := Compose(&mail.Address{Address: "noreply@example.com"},
		Message{ToEmail: "bob@example.com", Subject: "Overdue", Text: "late"}, time.Now())
	require.NoError(t, err)

	r, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	p, err := r.NextPart()
	require.NoError(t, err)
	b, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Equal(t, "late", string(b))
	_, err = r.NextPart()
	assert.Equal(t, io.EOF, err)
}
