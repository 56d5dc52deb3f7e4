// Logoforge - logo design workflow server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/ashureev/logoforge/internal/api"
	"github.com/ashureev/logoforge/internal/artifact"
	"github.com/ashureev/logoforge/internal/auditlog"
	"github.com/ashureev/logoforge/internal/config"
	"github.com/ashureev/logoforge/internal/identity"
	"github.com/ashureev/logoforge/internal/judge"
	"github.com/ashureev/logoforge/internal/middleware"
	"github.com/ashureev/logoforge/internal/orchestrator"
	"github.com/ashureev/logoforge/internal/realtime"
	"github.com/ashureev/logoforge/internal/session"
	"github.com/ashureev/logoforge/internal/store"
	"github.com/ashureev/logoforge/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "backend", cfg.Store.Backend)

	sessions := session.New(repo, session.Options{
		MaxRetries:     cfg.Retry.DatabaseMaxRetries,
		RetryBaseDelay: cfg.Retry.DatabaseRetryBaseDelay,
		Logger:         logger,
	})
	defer sessions.Close()

	hub := realtime.NewHub(cfg.FrontendURL, cfg.IsDevelopment(), logger)
	sessions.OnCommit(hub.Observe)

	if cfg.AuditLog.Enabled {
		audit, err := auditlog.New(afero.NewOsFs(), auditlog.Config{
			Dir:       cfg.AuditLog.Dir,
			QueueSize: cfg.AuditLog.QueueSize,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize audit log", "error", err)
			os.Exit(1)
		}
		defer func() { _ = audit.Close() }()
		sessions.OnCommit(audit.Observe)
		slog.Info("Audit log enabled", "dir", cfg.AuditLog.Dir)
	}

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}

	artifacts, err := openArtifacts(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize artifact store", "error", err)
		os.Exit(1)
	}
	opts = append(opts, orchestrator.WithArtifacts(artifacts, cfg.Artifact.Prefix))

	evaluationEnabled := false
	//nolint:nestif // Startup wiring is intentionally sequential to keep dependency setup explicit.
	if cfg.Judge.LLMAddr != "" {
		profiles, err := judge.LoadConfig(cfg.Judge.ProfilesPath)
		if err != nil {
			slog.Error("Failed to load judge profiles", "error", err)
			os.Exit(1)
		}
		slog.Info("Connecting to completion service", "address", cfg.Judge.LLMAddr)
		completer, err := judge.NewGrpcCompleter(judge.DefaultGrpcCompleterConfig(cfg.Judge.LLMAddr), logger)
		if err != nil {
			slog.Warn("Failed to connect to completion service, evaluation will be disabled", "error", err)
		} else {
			defer completer.Close()
			runner := judge.NewRunner(completer, profiles, judge.RunnerOptions{
				Model:   cfg.Judge.Model,
				Timeout: cfg.Judge.Timeout,
				Logger:  logger,
			})
			opts = append(opts, orchestrator.WithEvaluator(runner))
			evaluationEnabled = true
			slog.Info("Judge panel ready", "judges", len(profiles.Judges), "model", cfg.Judge.Model)
		}
	}
	if !evaluationEnabled {
		slog.Info("Evaluation disabled (LLM_ADDR not set or connection failed)")
	}

	orch := orchestrator.New(sessions, opts...)

	healthHandler := api.NewHealthHandler(sessions, cfg.Timeout.HealthCheck, map[string]bool{
		"evaluation": evaluationEnabled,
		"audit_log":  cfg.AuditLog.Enabled,
		"s3_export":  cfg.Artifact.Enabled(),
	})
	sessionHandler := api.NewSessionHandler(sessions)
	workflowHandler := api.NewWorkflowHandler(orch,
		api.NewUserRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	sessionHandler.RegisterRoutes(r)
	workflowHandler.RegisterRoutes(r)
	r.Get("/ws/session", hub.ServeHTTP)

	// Review console (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WebSocket streams are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	sweeperDone := session.StartSweeper(ctx, sessions, repo, session.SweepConfig{
		Interval:  cfg.Session.SweepInterval,
		IdleTTL:   cfg.Session.IdleTTL,
		Retention: cfg.Session.Retention,
	})

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-sweeperDone

	slog.Info("Server stopped successfully", "active_sessions", sessions.ActiveSessions())
}

// openArtifacts returns S3 storage when a bucket is configured and a local
// directory otherwise.
func openArtifacts(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	if cfg.Artifact.Enabled() {
		slog.Info("Exporting to object storage", "bucket", cfg.Artifact.Bucket, "endpoint", cfg.Artifact.Endpoint)
		return artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:   cfg.Artifact.Bucket,
			Region:   cfg.Artifact.Region,
			Endpoint: cfg.Artifact.Endpoint,
		})
	}
	slog.Info("Exporting to local directory", "dir", cfg.Artifact.Dir)
	return artifact.NewFileStore(afero.NewOsFs(), cfg.Artifact.Dir)
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
