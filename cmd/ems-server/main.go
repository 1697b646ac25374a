package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emsops/emsops/internal/config"
	"github.com/emsops/emsops/internal/domain/identity"
	"github.com/emsops/emsops/internal/domain/session"
	"github.com/emsops/emsops/internal/platform/audit"
	"github.com/emsops/emsops/internal/platform/auth"
	"github.com/emsops/emsops/internal/platform/db"
	"github.com/emsops/emsops/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ems-server",
		Short: "EMS Operations API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(principalCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// sweepCmd deletes sessions past the retention window once and exits. The
// server also runs this on an interval; the command exists for cron-style
// deployments and manual runs.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-sessions",
		Short: "Delete sessions past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			svc := session.NewService(session.NewRepo(pool), nil, audit.Nop(), logger, cfg.TokenTTL)
			n, err := svc.SweepExpired(ctx, cfg.SessionRetention)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d session(s).\n", n)
			return nil
		},
	}
}

func principalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "principal",
		Short: "Manage principals",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			if !db.ValidTenantID(tenant) {
				return fmt.Errorf("invalid tenant identifier: %q", tenant)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewRepo(pool), cfg.BcryptCost)
			p := &identity.Principal{TenantID: tenant, Username: username, Role: role}
			if err := svc.CreatePrincipal(ctx, p, password); err != nil {
				return err
			}
			fmt.Printf("Created principal %s (%s/%s, role %s).\n", p.ID, tenant, username, role)
			return nil
		},
	}
	createCmd.Flags().String("tenant", "default", "Tenant identifier")
	createCmd.Flags().String("username", "", "Username")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("role", "medic", "Role (medic, dispatcher, supervisor, admin)")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Signing key. Development runs without AUTH_SIGNING_KEY get an
	// ephemeral key; tokens die with the process.
	signingKey, err := cfg.SigningKeyBytes()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid AUTH_SIGNING_KEY")
	}
	if signingKey == nil {
		signingKey = make([]byte, 32)
		if _, err := crypto_rand.Read(signingKey); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate ephemeral signing key")
		}
		logger.Warn().Msg("using ephemeral signing key; tokens will not survive a restart")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Audit trail: Postgres-backed, with rejected-token events sampled so
	// a credential-stuffing run cannot flood the table.
	recorder := audit.NewSampledRecorder(audit.NewPGRecorder(pool, logger), 10)

	// Identity
	identityRepo := identity.NewRepo(pool)
	identitySvc := identity.NewService(identityRepo, cfg.BcryptCost)

	// Token issuing and verification share the signing key. The issuer
	// string binds tokens to this deployment.
	issuer := auth.NewTokenIssuer(signingKey, "emsops")
	verifier := auth.NewTokenVerifier(signingKey, "emsops")

	// Sessions
	sessionRepo := session.NewRepo(pool)
	sessionSvc := session.NewService(sessionRepo, issuer, recorder, logger, cfg.TokenTTL)

	// Request authorizer: token signature first, then the authoritative
	// session lookup. Store errors fail closed.
	authorizer := auth.NewAuthorizer(verifier, sessionSvc, recorder, logger, cfg.StoreTimeout)

	// Optional OIDC delegation for login
	var assertions *auth.AssertionVerifier
	if cfg.OIDCIssuer != "" {
		provider, err := auth.NewOIDCProvider(cfg.OIDCIssuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("OIDC discovery failed")
		}
		assertions = auth.NewAssertionVerifier(provider, cfg.OIDCAudience)
		logger.Info().Str("issuer", cfg.OIDCIssuer).Msg("OIDC delegated login enabled")
	}
	credentials := auth.NewCredentialVerifier(identitySvc, assertions)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", "X-CSRF-Token"},
	}))

	e.Use(db.TenantMiddleware(cfg.DefaultTenant))
	e.Use(auth.Middleware(authorizer, auth.AuthSkipper))

	// Health checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/readyz", db.HealthHandler(pool))
	e.GET("/health/db", db.HealthHandler(pool))

	// Auth surface. Login carries its own per-client rate limit.
	authGroup := e.Group("/auth")
	loginLimit := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateRPS,
		BurstSize:         cfg.LoginRateBurst,
	}
	if loginLimit.RequestsPerSecond <= 0 {
		loginLimit = middleware.DefaultLoginRateLimitConfig()
	}
	authGroup.Use(middleware.RateLimitPerClient(loginLimit))

	sessionHandler := session.NewHandler(sessionSvc, credentials, identitySvc, logger)
	sessionHandler.RegisterRoutes(authGroup)

	// Retention sweeper
	sweeper := session.NewSweeper(sessionSvc, cfg.SweepInterval, cfg.SessionRetention, logger)
	sweeper.Start(ctx)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
