package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/monocle-dev/scrumboard/db"
	"github.com/monocle-dev/scrumboard/internal/auth"
	"github.com/monocle-dev/scrumboard/internal/config"
	"github.com/monocle-dev/scrumboard/internal/logging"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/router"
	"github.com/monocle-dev/scrumboard/internal/scheduler"
	"github.com/monocle-dev/scrumboard/internal/types"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	Version = "0.1.0"
	appName = "scrumboard"

	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Scrum board API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of .env")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), envFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := setup(envFile)
				if err != nil {
					return err
				}
				defer db.Close()

				logging.Logger.Info("schema migrated", "database", redact(cfg.DatabaseURL))
				return nil
			},
		},
		createAdminCmd(&envFile),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

func createAdminCmd(envFile *string) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(*envFile); err != nil {
				return err
			}
			defer db.Close()

			user, err := createAdmin(db.DB, name, email, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (id %d) ready\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Admin", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Password (at least 8 characters)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// createAdmin promotes the user with email, creating it when missing.
func createAdmin(tx *gorm.DB, name, email, password string) (*models.User, error) {
	email = auth.NormalizeEmail(email)

	var user models.User
	err := tx.Where("email = ?", email).First(&user).Error

	switch {
	case err == nil:
		if err := tx.Model(&user).Update("role", types.RoleAdmin).Error; err != nil {
			return nil, fmt.Errorf("promote %s: %w", email, err)
		}
		user.Role = types.RoleAdmin
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("look up %s: %w", email, err)
	}

	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user = models.User{Name: name, Email: email, PasswordHash: hash, Role: types.RoleAdmin}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}

	return &user, nil
}

// setup loads configuration, connects and migrates the database.
func setup(envFile string) (*config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	logging.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := db.ConnectDatabase(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return cfg, nil
}

func serve(parent context.Context, envFile string) error {
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(envFile)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := auth.InitSessionSecret(cfg.SessionSecret); err != nil {
		return err
	}
	auth.ConfigureCookies(cfg.Domain, cfg.CookieSecure)

	if cfg.SprintSweepInterval > 0 {
		scheduler.Initialize(cfg.SprintSweepInterval)
		defer scheduler.Shutdown()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.Info("listening", "addr", srv.Addr, "version", Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// redact hides the password of a postgres URL for logging.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return "database"
	}
	return u.Redacted()
}
