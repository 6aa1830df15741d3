package smtp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	from string
	to   []string
	data string
}

type backend struct {
	mu       sync.Mutex
	messages []received
	sessions int
	password string
	reject   bool
}

func (b *backend) NewSession(_ *gosmtp.Conn) (gosmtp.Session, error) {
	b.mu.Lock()
	b.sessions++
	b.mu.Unlock()
	return &session{b: b}, nil
}

func (b *backend) snapshot() ([]received, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]received(nil), b.messages...), b.sessions
}

type session struct {
	b    *backend
	cur  received
	auth bool
}

func (s *session) AuthMechanisms() []string { return []string{sasl.Plain} }

func (s *session) Auth(string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != "mailer" || password != s.b.password {
			return errors.New("invalid credentials")
		}
		s.auth = true
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.cur = received{from: from}
	return nil
}

func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	if s.b.reject {
		return &gosmtp.SMTPError{Code: 550, Message: "mailbox unavailable"}
	}
	s.cur.to = append(s.cur.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.cur.data = string(b)
	s.b.mu.Lock()
	s.b.messages = append(s.b.messages, s.cur)
	s.b.mu.Unlock()
	return nil
}

func (s *session) Reset()        { s.cur = received{} }
func (s *session) Logout() error { return nil }

func startServer(t *testing.T, be *backend) config.EmailConfig {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := gosmtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return config.EmailConfig{
		Enabled:     true,
		Host:        host,
		Port:        port,
		Username:    "mailer",
		TLSMode:     TLSModeNone,
		FromAddress: "noreply@example.com",
		FromName:    "Tasks",
		LocalName:   "tasknotify.test",
		SendTimeout: 5 * time.Second,
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMailer_SendReusesSession(t *testing.T) {
	t.Parallel()
	be := &backend{password: "pw"}
	cfg := startServer(t, be)
	m := New(cfg, "pw", discard())
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Send(ctx, Message{
		ToEmail: "alice@example.com", ToName: "Alice", Subject: "Assigned", HTML: "<p>hi</p>", Text: "hi",
	}))
	require.NoError(t, m.Send(ctx, Message{
		ToEmail: "bob@example.com", Subject: "Overdue", Text: "late",
	}))

	msgs, sessions := be.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, sessions, "second send reuses the cached session")
	assert.Equal(t, "noreply@example.com", msgs[0].from)
	assert.Equal(t, []string{"alice@example.com"}, msgs[0].to)
	assert.Contains(t, msgs[0].data, "Subject: Assigned")
	assert.Contains(t, msgs[0].data, "multipart/alternative")
	assert.Contains(t, msgs[1].data, "late")
}

func TestMailer_ReconfigureDropsSession(t *testing.T) {
	t.Parallel()
	be := &backend{password: "pw"}
	cfg := startServer(t, be)
	m := New(cfg, "pw", discard())
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Send(ctx, Message{ToEmail: "a@example.com", Subject: "one", Text: "1"}))
	m.Reconfigure(cfg, "pw")
	require.NoError(t, m.Send(ctx, Message{ToEmail: "a@example.com", Subject: "two", Text: "2"}))

	_, sessions := be.snapshot()
	assert.Equal(t, 2, sessions)
}

func TestMailer_Errors(t *testing.T) {
	t.Parallel()

	t.Run("bad credentials", func(t *testing.T) {
		t.Parallel()
		cfg := startServer(t, &backend{password: "right"})
		m := New(cfg, "wrong", discard())
		err := m.Verify(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authenticate")
	})

	t.Run("rejected recipient", func(t *testing.T) {
		t.Parallel()
		cfg := startServer(t, &backend{password: "pw", reject: true})
		m := New(cfg, "pw", discard())
		err := m.Send(context.Background(), Message{ToEmail: "x@example.com", Subject: "s", Text: "t"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "550")
	})

	t.Run("starttls not offered", func(t *testing.T) {
		t.Parallel()
		be := &backend{password: "pw"}
		cfg := startServer(t, be)
		cfg.TLSMode = TLSModeStartTLS
		m := New(cfg, "pw", discard())
		err := m.Send(context.Background(), Message{ToEmail: "x@example.com", Subject: "s", Text: "t"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "starttls")
		msgs, _ := be.snapshot()
		assert.Empty(t, msgs, "nothing is sent in the clear")
	})

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		m := New(config.EmailConfig{}, "", discard())
		err := m.Send(context.Background(), Message{ToEmail: "x@example.com", Subject: "s", Text: "t"})
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("verify ok", func(t *testing.T) {
		t.Parallel()
		cfg := startServer(t, &backend{password: "pw"})
		m := New(cfg, "pw", discard())
		defer m.Close()
		assert.NoError(t, m.Verify(context.Background()))
	})
}

func TestMailer_TimeoutOnSilentServer(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	m := New(config.EmailConfig{
		Host:        host,
		Port:        port,
		TLSMode:     TLSModeNone,
		FromAddress: "noreply@example.com",
		SendTimeout: 200 * time.Millisecond,
	}, "", discard())

	start := time.Now()
	err = m.Send(context.Background(), Message{ToEmail: "x@example.com", Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "closed"))
}
