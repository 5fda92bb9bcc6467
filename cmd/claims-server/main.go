package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/claimdesk/claimdesk/internal/config"
	"github.com/claimdesk/claimdesk/internal/domain/claims"
	"github.com/claimdesk/claimdesk/internal/domain/identity"
	"github.com/claimdesk/claimdesk/internal/domain/organization"
	"github.com/claimdesk/claimdesk/internal/domain/patient"
	"github.com/claimdesk/claimdesk/internal/domain/patientstatus"
	"github.com/claimdesk/claimdesk/internal/platform/auth"
	"github.com/claimdesk/claimdesk/internal/platform/db"
	"github.com/claimdesk/claimdesk/internal/platform/jobs"
	"github.com/claimdesk/claimdesk/internal/platform/middleware"
	"github.com/claimdesk/claimdesk/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "claims-server",
		Short: "Multi-tenant claims management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the claims API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect()
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect()
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, cfg.MigrationsDir).Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %s\n", "VERSION", "NAME", "STATUS")
			for _, s := range statuses {
				status := "pending"
				if s.Applied {
					status = "applied"
				}
				fmt.Printf("%-10d %-40s %s\n", s.Version, s.Name, status)
			}
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate demo organizations, users, patients and claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pool, err := connect()
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
			return seed.Run(context.Background(), pool, logger)
		},
	}
}

func tokenCmd() *cobra.Command {
	var userID, orgID, email, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the given identity (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to mint tokens in production; use the identity provider")
			}
			if cfg.AuthSecret == "" {
				return fmt.Errorf("AUTH_SECRET must be set to sign tokens")
			}
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}

			id := auth.Identity{UserID: uuid.New(), Email: email, Role: role}
			if userID != "" {
				if id.UserID, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("invalid --user-id: %w", err)
				}
			}
			if id.OrgID, err = uuid.Parse(orgID); err != nil {
				return fmt.Errorf("invalid --org-id: %w", err)
			}

			token, err := auth.IssueToken([]byte(cfg.AuthSecret), id, cfg.TokenTTL())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "subject user id (random when omitted)")
	cmd.Flags().StringVar(&orgID, "org-id", "", "organization id (required)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "role claim")
	_ = cmd.MarkFlagRequired("org-id")

	return cmd
}

func connect() (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, cfg.LockTimeout(), fn)
	}

	// Repositories and services
	orgRepo := organization.NewRepoPG(pool)
	userRepo := identity.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	claimRepo := claims.NewRepoPG(pool)
	statusRepo := patientstatus.NewRepoPG(pool)
	queue := jobs.NewStorePG(pool)

	orgSvc := organization.NewService(orgRepo)
	userSvc := identity.NewService(userRepo)
	patientSvc := patient.NewService(patientRepo)
	claimSvc := claims.NewService(claimRepo, patientRepo, inTx)
	statusSvc := patientstatus.NewService(statusRepo, patientRepo, queue, inTx, cfg.JobMaxAttempts)

	// Background workers
	runner := jobs.NewRunner(queue, logger, cfg.JobWorkers, cfg.JobPollInterval())
	patientstatus.RegisterWorkflows(runner, claimRepo, inTx, logger)
	jobsCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	runner.Start(jobsCtx)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(pool))

	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware([]byte(cfg.AuthSecret)))
	}
	api.Use(auth.TenantMiddleware())

	organization.NewHandler(orgSvc).RegisterRoutes(api)
	identity.NewHandler(userSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	claims.NewHandler(claimSvc).RegisterRoutes(api)
	patientstatus.NewHandler(statusSvc).RegisterRoutes(api)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	stopJobs()
	runner.Wait()
	logger.Info().Msg("server stopped")
	return nil
}
