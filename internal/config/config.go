package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Email     EmailConfig     `mapstructure:"email"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Reminders ReminderConfig  `mapstructure:"reminders"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"omitempty,oneof=auto json text"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"required,oneof=pgx sqlite"`
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gte=0"`
}

// EmailConfig holds the outbound SMTP settings. When Enabled is false, or
// Host is empty, queued mail stays pending and drains are no-ops.
type EmailConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Host               string        `mapstructure:"host" validate:"required_if=Enabled true"`
	Port               int           `mapstructure:"port" validate:"gte=0,lt=65536"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	PasswordKeyringKey string        `mapstructure:"password_keyring_key"`
	KeyringDir         string        `mapstructure:"keyring_dir"`
	TLSMode            string        `mapstructure:"tls_mode" validate:"omitempty,oneof=starttls tls none"`
	FromAddress        string        `mapstructure:"from_address" validate:"required_if=Enabled true,omitempty,email"`
	FromName           string        `mapstructure:"from_name"`
	LocalName          string        `mapstructure:"local_name"`
	SendTimeout        time.Duration `mapstructure:"send_timeout" validate:"gte=0"`
	BatchSize          int           `mapstructure:"batch_size" validate:"gte=0"`
	StuckClaimAge      time.Duration `mapstructure:"stuck_claim_age" validate:"gte=0"`
}

// Configured reports whether enough settings are present to attempt delivery.
func (c EmailConfig) Configured() bool {
	return c.Enabled && c.Host != ""
}

// SchedulerConfig controls the in-process periodic jobs.
type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval" validate:"gte=0"`
	DrainInterval    time.Duration `mapstructure:"drain_interval" validate:"gte=0"`
	StartupDelay     time.Duration `mapstructure:"startup_delay" validate:"gte=0"`
	Timezone         string        `mapstructure:"timezone"`
	LockFile         string        `mapstructure:"lock_file"`
}

// Location resolves the configured timezone, defaulting to UTC.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ReminderConfig configures the due-date scan.
type ReminderConfig struct {
	TerminalStatuses []string `mapstructure:"terminal_statuses"`
}

// WorkflowConfig configures default workflow seeding.
type WorkflowConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// AppConfig holds settings used when rendering outbound content.
type AppConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}
