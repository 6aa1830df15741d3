package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-isatty"
	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/platform/credential"
	"github.com/phrazzld/tasknotify/internal/platform/database"
	"github.com/phrazzld/tasknotify/internal/platform/logger"
	"github.com/phrazzld/tasknotify/internal/store"
	"github.com/spf13/cobra"
)

// cliOptions are the flags shared by every subcommand.
type cliOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "tasknotify",
		Short:         "Task workflow and notification delivery engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv(config.ConfigFileEnv),
		"path to the configuration file")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newRemindCmd(opts),
		newDrainCmd(opts),
		newQueueCmd(opts),
		newEmailCmd(opts),
		newCredentialsCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// loadConfig reads the configuration named by --config, or the default
// locations when the flag is empty.
func (o *cliOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// cliLogger logs to stderr so command output on stdout stays clean.
func cliLogger(cfg config.ServerConfig) *slog.Logger {
	level, _ := logger.ParseLevel(cfg.LogLevel)
	return logger.New(os.Stderr, level, cfg.LogFormat)
}

// openDatabase opens and migrates the configured database.
func openDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sqlx.DB, error) {
	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// withApp loads configuration, opens the database and builds the
// application for a one-shot command.
func (o *cliOptions) withApp(ctx context.Context, fn func(app *application) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	log := cliLogger(cfg.Server)
	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	app, err := newApplication(cfg, log, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer app.cleanup()
	return fn(app)
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			log.Info("server configuration loaded",
				"port", cfg.Server.Port,
				"log_level", cfg.Server.LogLevel,
				"database_driver", cfg.Database.Driver,
				"scheduler_enabled", cfg.Scheduler.Enabled)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := openDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			app, err := newApplication(cfg, log, db)
			if err != nil {
				_ = db.Close()
				return err
			}
			defer app.cleanup()

			if err := app.seedWorkflow(ctx); err != nil {
				return err
			}
			return app.serve(ctx, opts.configPath)
		},
	}
}

func newMigrateCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withDB := func(ctx context.Context, fn func(cfg *config.Config, db *sqlx.DB, log *slog.Logger) error) error {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg.Server)
		db, err := database.Open(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(cfg, db, log)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations and seed the default workflow",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd.Context(), func(cfg *config.Config, db *sqlx.DB, log *slog.Logger) error {
					if err := database.Migrate(cmd.Context(), db, log); err != nil {
						return err
					}
					app, err := newApplication(cfg, log, db)
					if err != nil {
						return err
					}
					return app.seedWorkflow(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd.Context(), func(_ *config.Config, db *sqlx.DB, log *slog.Logger) error {
					return database.MigrateDown(cmd.Context(), db, log)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd.Context(), func(_ *config.Config, db *sqlx.DB, _ *slog.Logger) error {
					statuses, err := database.Status(cmd.Context(), db)
					if err != nil {
						return err
					}
					renderMigrations(cmd.OutOrStdout(), statuses)
					return nil
				})
			},
		},
	)
	return cmd
}

func newRemindCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run one due-soon and overdue reminder scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(app *application) error {
				result, err := app.scanner.ScanDueSoonAndOverdue(cmd.Context())
				if err != nil {
					return err
				}
				renderScan(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
}

func newDrainCmd(opts *cliOptions) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Deliver one batch of queued email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(app *application) error {
				result, err := app.queue.Drain(cmd.Context(), batch)
				if err != nil {
					return err
				}
				renderDrain(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "jobs to deliver (default: email.batch_size)")
	return cmd
}

func newQueueCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the email queue",
	}

	var (
		status string
		limit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List queued email jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := domain.EmailStatus(status)
			if s != "" && !s.IsValid() {
				return fmt.Errorf("unknown status %q (want pending, sending, sent or failed)", status)
			}
			return opts.withApp(cmd.Context(), func(app *application) error {
				jobs, err := app.queue.List(cmd.Context(), store.EmailJobFilter{Status: s, Limit: limit})
				if err != nil {
					return err
				}
				renderJobs(cmd.OutOrStdout(), jobs)
				return nil
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "only jobs with this status")
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of jobs")

	cmd.AddCommand(list)
	return cmd
}

func newEmailCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Email delivery tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Connect and authenticate to the configured SMTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(app *application) error {
				if err := app.queue.Verify(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "SMTP server %s:%d accepted the connection\n",
					app.config.Email.Host, app.config.Email.Port)
				return nil
			})
		},
	})
	return cmd
}

func newCredentialsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage secrets in the system keyring",
	}

	var keyringDir string
	set := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret read from stdin under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := keyringDir
			if dir == "" {
				// The keyring is usable before the rest of the configuration is.
				if cfg, err := opts.loadConfig(); err == nil {
					dir = cfg.Email.KeyringDir
				}
			}

			value, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ring, err := credential.Open(dir)
			if err != nil {
				return err
			}
			if err := ring.Set(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored credential %q\n", args[0])
			return nil
		},
	}
	set.Flags().StringVar(&keyringDir, "keyring-dir", "", "directory for the file keyring backend")

	cmd.AddCommand(set)
	return cmd
}

// readSecret reads one line from in, prompting on prompt when in is a
// terminal.
func readSecret(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprint(prompt, "Secret: ")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	return secret, nil
}

func newTokenCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access token tools",
	}

	var (
		userID string
		role   string
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token signed with auth.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			app := &application{config: cfg}
			if err := app.initAuth(); err != nil {
				return err
			}
			token, err := app.jwtService.GenerateToken(cmd.Context(), id, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user ID for the token subject")
	issue.Flags().StringVar(&role, "role", "service", "role claim")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}
