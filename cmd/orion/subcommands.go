package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aitorres/orion/internal/auth"
	"github.com/aitorres/orion/internal/bootstrap"
	"github.com/aitorres/orion/internal/config"
	"github.com/aitorres/orion/internal/logging"
	"github.com/aitorres/orion/internal/pds"
	"github.com/aitorres/orion/internal/server"
	"github.com/aitorres/orion/internal/staticfiles"
	"github.com/aitorres/orion/internal/store"
)

// Resolve configuration and apply its logging section
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("log") {
		level, _ := cmd.Flags().GetString("log")
		cfg.Logging.Level = level
	}
	logging.Setup(cfg.Logging)
	return cfg, nil
}

// Apply database migrations
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg)
		},
	}
}

// Collect static assets into the static root
func newCollectStaticCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collectstatic",
		Short: "Collect static assets into the static root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runCollectStatic(cmd.Context(), cfg)
		},
	}
}

// Run the console server
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Orion console server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

// Run the full deployment bootstrap
func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "bootstrap",
		Aliases: []string{"up"},
		Short:   "Migrate, collect static assets, then serve",
		Long:    "Runs the deployment sequence: database migrations, static asset collection, and the console server. A failing step aborts the sequence.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return bootstrap.Run(cmd.Context(), []bootstrap.Step{
				{Name: "migrate", Run: func(ctx context.Context) error { return runMigrate(ctx, cfg) }},
				{Name: "collectstatic", Run: func(ctx context.Context) error { return runCollectStatic(ctx, cfg) }},
				{Name: "serve", Run: func(ctx context.Context) error { return runServe(ctx, cfg) }},
			})
		},
	}
}

// Create a console user
func newCreateUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a console user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("ORION_USER_PASSWORD")
			}
			if password == "" {
				return errors.New("password required: use --password or ORION_USER_PASSWORD")
			}

			st, err := store.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := auth.NewService(st, cfg.Server.SessionTTL.Std())
			user, err := svc.CreateUser(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().String("username", "", "username for the new user")
	cmd.Flags().String("password", "", "password for the new user (or set ORION_USER_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func runMigrate(ctx context.Context, cfg config.Config) error {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	version, err := st.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	log.Info().Int64("schema_version", version).Str("database", cfg.Database.Path).Msg("migrations applied")
	return nil
}

func runCollectStatic(_ context.Context, cfg config.Config) error {
	result, err := staticfiles.Collect(cfg.Server.StaticRoot, cfg.Server.StaticSources)
	if err != nil {
		return err
	}
	fmt.Printf("%d static files collected, %d unchanged\n", result.Collected, result.Skipped)
	return nil
}

func runServe(ctx context.Context, cfg config.Config) error {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}

	authSvc := auth.NewService(st, cfg.Server.SessionTTL.Std())
	client := pds.NewClient(cfg.PDS.Hostname, cfg.PDS.AdminPassword, cfg.PDS.Timeout.Std())
	cache := pds.NewCache(client, cfg.Server.Workers)
	srv := server.New(cfg.Server, st, authSvc, client, cache)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cache.Run(ctx)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := st.PruneSessions(ctx); err == nil && n > 0 {
					log.Debug().Int64("pruned", n).Msg("expired sessions removed")
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
