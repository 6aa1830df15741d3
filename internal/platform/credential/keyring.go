// Package credential stores and retrieves secrets, such as the SMTP
// password, in the operating system keyring with an encrypted file
// fallback for headless hosts.
package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
	"github.com/phrazzld/tasknotify/internal/config"
)

const serviceName = "tasknotify"

// FilePasswordEnv names the variable holding the passphrase for the
// file backend.
const FilePasswordEnv = "TASKNOTIFY_KEYRING_PASSWORD"

// ErrNotFound is returned when a key has no stored secret.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets in a keyring.
type Store struct {
	ring keyring.Keyring
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the platform keyring. dir is where the file backend keeps its
// encrypted entries; empty means ~/.config/tasknotify/credentials.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "~/.config/tasknotify/credentials"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         filePassword,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

func filePassword(prompt string) (string, error) {
	if pw := os.Getenv(FilePasswordEnv); pw != "" {
		return pw, nil
	}
	return keyring.FixedStringPrompt("tasknotify-file-key")(prompt)
}

// Get retrieves the secret stored under key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores value under key, replacing any previous secret.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "tasknotify " + key,
		Description: "tasknotify credential",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes the secret stored under key.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Getter looks up a secret by key.
type Getter interface {
	Get(key string) (string, error)
}

// SMTPPassword returns the SMTP password for cfg. An inline password wins;
// otherwise the keyring entry named by PasswordKeyringKey is read. With
// neither set the password is empty and the mailer skips authentication.
// open is only called when the keyring is needed.
func SMTPPassword(cfg config.EmailConfig, open func() (Getter, error)) (string, error) {
	if cfg.Password != "" || cfg.PasswordKeyringKey == "" {
		return cfg.Password, nil
	}
	g, err := open()
	if err != nil {
		return "", err
	}
	return g.Get(cfg.PasswordKeyringKey)
}
