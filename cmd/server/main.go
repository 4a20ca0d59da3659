package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/originguard/internal/config"
	"github.com/benvon/originguard/internal/cors"
	"github.com/benvon/originguard/internal/database"
	"github.com/benvon/originguard/internal/handlers"
	"github.com/benvon/originguard/internal/logger"
	"github.com/benvon/originguard/internal/metrics"
	"github.com/benvon/originguard/internal/middleware"
	"github.com/benvon/originguard/internal/server"
	"github.com/benvon/originguard/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(cfg.AppEnv, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.String("app_env", cfg.AppEnv),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(ctx, telemetry.ServiceName, cfg.OTELEndpoint, cfg.AppEnv)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.String("error", logger.SanitizeError(err)))
			} else {
				tracing = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.String("error", logger.SanitizeError(err)))
					}
				}()
			}
		}
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, time.Minute, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.String("error", logger.SanitizeError(err)))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.String("error", logger.SanitizeError(err)))
		}
	}()
	zapLogger.Info("connected_to_database")

	if err := db.EnsureSchema(ctx); err != nil {
		zapLogger.Fatal("failed_to_ensure_schema", zap.String("error", logger.SanitizeError(err)))
	}

	authz, err := buildAuthorizer(ctx, cfg, database.NewCorsOriginRepository(db))
	if err != nil {
		zapLogger.Fatal("failed_to_build_cors_authorizer", zap.String("error", logger.SanitizeError(err)))
	}

	store, err := middleware.NewRateLimitStore(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.String("error", logger.SanitizeError(err)))
	}
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rate_limit_store", zap.String("error", logger.SanitizeError(err)))
		}
	}()
	zapLogger.Info("rate_limit_store_ready",
		zap.String("backend", store.Backend()),
		zap.String("rate", cfg.RateLimit),
	)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
		m.Registry().MustRegister(collectors.NewDBStatsCollector(db.DB, telemetry.ServiceName))
	}

	checks := map[string]handlers.Pinger{
		"database":         db,
		"rate_limit_store": handlers.PingerFunc(store.Ping),
	}
	handler, err := server.NewHandler(server.Options{
		Authorizer:     authz,
		Logger:         zapLogger,
		Metrics:        m,
		RateLimitStore: store,
		RateLimit:      cfg.RateLimit,
		EnableHSTS:     cfg.EnableHSTS,
		Tracing:        tracing,
		Checks:         checks,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_build_handler", zap.String("error", logger.SanitizeError(err)))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		zapLogger.Error("server_failed_to_start", zap.String("error", logger.SanitizeError(err)))
		return
	case <-ctx.Done():
	}

	zapLogger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.String("error", logger.SanitizeError(err)))
		return
	}
	zapLogger.Info("server_exited")
}

// buildAuthorizer fixes the allowed origin set for the life of the process:
// the policy entries for APP_ENV, FRONTEND_URL, then origins stored in the database.
func buildAuthorizer(ctx context.Context, cfg *config.Config, repo *database.CorsOriginRepository) (*cors.Authorizer, error) {
	policy, err := cors.LoadPolicy(cfg.CORSConfigFile)
	if err != nil {
		return nil, err
	}
	stored, err := repo.Patterns(ctx, cfg.AppEnv)
	if err != nil {
		return nil, err
	}
	return policy.NewAuthorizerForEnv(cfg.AppEnv, cfg.FrontendURL, stored...)
}
