package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "TASKNOTIFY"

// ConfigFileEnv names the environment variable that points at a config file.
const ConfigFileEnv = EnvPrefix + "_CONFIG"

var validate = validator.New()

// Load configuration from environment variables and optionally a config file.
// The file is taken from TASKNOTIFY_CONFIG, falling back to ./config.yaml when
// present. Environment variables take precedence over values from the file.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile loads configuration using path as the config file. An empty path
// looks for config.yaml in the working directory and tolerates its absence.
func LoadFile(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch re-reads the config file at path whenever it changes and passes each
// valid result to onChange. Invalid edits are logged and ignored.
func Watch(path string, logger *slog.Logger, onChange func(*Config)) error {
	if path == "" {
		return errors.New("config watch requires a config file path")
	}
	v, err := newViper(path)
	if err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Error("ignoring invalid configuration change",
				"file", e.Name,
				"error", err)
			return
		}
		logger.Info("configuration reloaded", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := cfg.Scheduler.Location(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so that AutomaticEnv overrides reach
// Unmarshal even when no config file mentions them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "auto")

	v.SetDefault("database.driver", "pgx")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime", "1h")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.password_keyring_key", "")
	v.SetDefault("email.keyring_dir", "")
	v.SetDefault("email.tls_mode", "starttls")
	v.SetDefault("email.from_address", "")
	v.SetDefault("email.from_name", "Task Notifications")
	v.SetDefault("email.local_name", "")
	v.SetDefault("email.send_timeout", "30s")
	v.SetDefault("email.batch_size", 10)
	v.SetDefault("email.stuck_claim_age", "15m")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_interval", "1h")
	v.SetDefault("scheduler.drain_interval", "5m")
	v.SetDefault("scheduler.startup_delay", "10s")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.lock_file", "")

	v.SetDefault("reminders.terminal_statuses", []string{"completed", "cancelled"})
	v.SetDefault("workflow.seed_file", "")
	v.SetDefault("app.base_url", "")
}
