package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/redact"
)

// TLS modes accepted in EmailConfig.TLSMode.
const (
	TLSModeStartTLS = "starttls"
	TLSModeImplicit = "tls"
	TLSModeNone     = "none"
)

// DefaultSendTimeout bounds one send when the configuration leaves it unset.
const DefaultSendTimeout = 30 * time.Second

// ErrNotConfigured is returned when no SMTP host is configured.
var ErrNotConfigured = errors.New("smtp: not configured")

// Mailer sends messages over a lazily opened, cached SMTP session.
// It is safe for concurrent use; sends are serialized over the session.
type Mailer struct {
	mu       sync.Mutex
	cfg      config.EmailConfig
	password string
	client   *gosmtp.Client
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Mailer. No connection is made until the first Send or
// Verify.
func New(cfg config.EmailConfig, password string, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		cfg:      cfg,
		password: password,
		logger:   logger.With("component", "smtp_mailer"),
		now:      time.Now,
	}
}

// Reconfigure replaces the settings and drops the cached session.
func (m *Mailer) Reconfigure(cfg config.EmailConfig, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked()
	m.cfg = cfg
	m.password = password
	m.logger.Info("smtp settings reloaded", "host", cfg.Host, "port", cfg.Port)
}

// Send delivers msg, opening a session first if none is cached. The
// delivery timeout (msg.Timeout, or the configured send timeout) starts
// once the session is free, so time spent queued behind another send does
// not count against it.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	timeout := m.sendTimeout()
	if msg.Timeout > 0 {
		timeout = msg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	from := &mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromAddress}
	body, err := Compose(from, msg, m.now())
	if err != nil {
		return err
	}

	client, err := m.sessionLocked(ctx)
	if err != nil {
		return err
	}

	err = m.runLocked(ctx, client, func() error {
		return client.SendMail(m.cfg.FromAddress, []string{msg.ToEmail}, bytes.NewReader(body))
	})
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Verify checks that the server is reachable and accepts the configured
// credentials.
func (m *Mailer) Verify(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.sendTimeout())
	defer cancel()

	m.dropLocked()
	client, err := m.sessionLocked(ctx)
	if err != nil {
		return err
	}
	return m.runLocked(ctx, client, client.Noop)
}

// Close ends the cached session, if any.
func (m *Mailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Quit()
	m.client = nil
	return err
}

func (m *Mailer) sendTimeout() time.Duration {
	if m.cfg.SendTimeout > 0 {
		return m.cfg.SendTimeout
	}
	return DefaultSendTimeout
}

// sessionLocked returns the cached session after a liveness check, or
// opens a new one.
func (m *Mailer) sessionLocked(ctx context.Context) (*gosmtp.Client, error) {
	if m.cfg.Host == "" {
		return nil, ErrNotConfigured
	}

	if m.client != nil {
		client := m.client
		if err := m.runLocked(ctx, client, client.Noop); err == nil {
			return client, nil
		}
		m.logger.Debug("cached smtp session is stale, reconnecting")
	}

	var client *gosmtp.Client
	err := m.runLocked(ctx, nil, func() error {
		var err error
		client, err = m.dial(ctx)
		return err
	})
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, fmt.Errorf("smtp connect: %w", err)
	}
	m.client = client
	m.logger.Debug("smtp session opened", "host", m.cfg.Host)
	return client, nil
}

// runLocked runs fn, abandoning it when ctx ends. Abandoning closes the
// client so fn returns promptly, and the session is dropped. Any error
// from fn also drops the session.
func (m *Mailer) runLocked(ctx context.Context, client *gosmtp.Client, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		if err != nil && client != nil {
			m.dropClient(client)
		}
		return err
	case <-ctx.Done():
		if client != nil {
			m.dropClient(client)
		}
		<-done
		return ctx.Err()
	}
}

func (m *Mailer) dropClient(client *gosmtp.Client) {
	_ = client.Close()
	if m.client == client {
		m.client = nil
	}
}

func (m *Mailer) dropLocked() {
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}
}

func (m *Mailer) dial(ctx context.Context) (*gosmtp.Client, error) {
	port := m.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(port))
	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{Timeout: m.sendTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if m.cfg.TLSMode == TLSModeImplicit {
		conn = tls.Client(conn, tlsConfig)
	}

	// Abort the handshake if ctx ends while it is in progress.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var client *gosmtp.Client
	if m.cfg.TLSMode == "" || m.cfg.TLSMode == TLSModeStartTLS {
		// NewClientStartTLS greets and upgrades; the EHLO that matters is
		// the one sent over TLS, below.
		client, err = gosmtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("starttls: %s", redact.Error(err))
		}
	} else {
		client = gosmtp.NewClient(conn)
	}
	fail := func(step string, err error) (*gosmtp.Client, error) {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %s", step, redact.Error(err))
	}

	if m.cfg.LocalName != "" {
		if err := client.Hello(m.cfg.LocalName); err != nil {
			return fail("hello", err)
		}
	}
	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.password)
		if err := client.Auth(auth); err != nil {
			return fail("authenticate", err)
		}
	}
	return client, nil
}
