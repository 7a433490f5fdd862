package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"opent1d/internal/api"
	"opent1d/internal/config"
	"opent1d/internal/credentials"
	"opent1d/internal/graph"
	"opent1d/internal/librelinkup"
	"opent1d/internal/observability"
	"opent1d/internal/scraper"
	"opent1d/internal/secrets"
	"opent1d/internal/storage"
	"opent1d/internal/webui"
)

func main() {
	logger := observability.NewLogger(observability.ConfigFromEnv())

	args := os.Args[1:]
	migrate := ""
	if len(args) > 0 && args[0] == "migrate" {
		migrate = "status"
		if len(args) > 1 {
			migrate = args[1]
		}
		args = args[min(len(args), 2):]
	}

	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Error("invalid configuration", observability.Err(err))
		os.Exit(2)
	}

	sentryEnabled := initSentry(logger)

	var sealer storage.Sealer
	s, err := secrets.LoadSealer(secrets.KeySource{Passphrase: cfg.EncryptionKey, UseKeyring: cfg.UseKeyring})
	if err != nil {
		logger.Error("encryption key unavailable", observability.Err(err))
		os.Exit(1)
	}
	if s != nil {
		sealer = s
		logger.Info("settings encryption at rest enabled")
	}

	if migrate != "" {
		runMigrationsCLI(logger, cfg, migrate)
		return
	}

	store := selectStore(cfg, sealer, logger)

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metricsCfg := observability.MetricsConfigFromEnv()
		metricsCfg.Enabled = true
		metrics = observability.NewMetrics(metricsCfg)
		logger.Info("metrics enabled", "namespace", metricsCfg.Namespace, "version", metricsCfg.Version)
	} else {
		logger.Info("metrics disabled")
	}

	auditLogger := selectAuditLogger(store, logger)

	clientOpts := []librelinkup.ClientOption{librelinkup.WithLogger(logger)}
	if cfg.LibreLinkUpURL != "" {
		clientOpts = append(clientOpts, librelinkup.WithBaseURL(cfg.LibreLinkUpURL))
	}
	llu := librelinkup.NewClient(clientOpts...)

	svcOpts := []credentials.Option{
		credentials.WithAuditLogger(auditLogger),
		credentials.WithLogger(logger),
		credentials.WithMetrics(metrics),
	}
	if cfg.VerifyCredentials {
		svcOpts = append(svcOpts, credentials.WithVerifier(llu))
	} else {
		logger.Info("credential verification disabled")
	}
	svc := credentials.NewService(store, svcOpts...)

	sup := scraper.NewSupervisor(func() *scraper.Scraper {
		return scraper.New(llu, store,
			scraper.WithInterval(cfg.ScrapeInterval),
			scraper.WithLogger(logger),
			scraper.WithMetrics(metrics),
		)
	}, scraper.WithSupervisorLogger(logger))
	svc.OnSaved(sup.OnSettingsSaved)

	web, err := webui.New(svc, logger)
	if err != nil {
		logger.Error("web ui templates", observability.Err(err))
		os.Exit(1)
	}

	mux := http.NewServeMux()
	srv := api.NewServer(mux, svc, store, logger, metrics, auditLogger)
	srv.RegisterRoutes(graph.NewHandler(graph.NewResolver(svc, store)), web)

	rateCfg := api.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}
	if cfg.TrustedProxies != "" {
		proxies, err := api.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			logger.Error("invalid trusted_proxies", observability.Err(err))
			os.Exit(2)
		}
		rateCfg.TrustedProxies = proxies
		logger.Info("trusted proxies configured", "count", len(proxies.CIDRs))
	}
	if rateCfg.Enabled() {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
		)
	} else {
		logger.Info("rate limiting disabled")
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(rateCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Saves sign in to LibreLinkUp, which can take a while.
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Slog().Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup.OnStartup(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("opent1d listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", observability.Err(err))
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	logger.Info("shutting down server", "timeout", "15s")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", observability.Err(err))
	} else {
		logger.Info("server stopped gracefully")
	}

	sup.Shutdown()
	logger.Info("scraper stopped")

	if err := store.Close(); err != nil {
		logger.Error("error closing store", observability.Err(err))
	} else {
		logger.Info("database connection closed")
	}

	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

// initSentry reports whether Sentry was configured from SENTRY_DSN.
func initSentry(logger observability.Logger) bool {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return false
	}
	env := envOr("SENTRY_ENVIRONMENT", "production")
	release := envOr("APP_VERSION", "dev")
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		TracesSampleRate: 1.0,
		AttachStacktrace: true,
	})
	if err != nil {
		logger.Warn("sentry initialization failed", observability.Err(err))
		return false
	}
	logger.Info("sentry initialized", "environment", env, "release", release)
	return true
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// runMigrationsCLI executes "opent1d migrate [up|status]".
func runMigrationsCLI(logger observability.Logger, cfg *config.Config, cmd string) {
	switch cmd {
	case "up":
		// Opening the store applies pending migrations.
		st := selectStore(cfg, nil, logger)
		_ = st.Close()
		runMigrationsCLI(logger, cfg, "status")
	case "status":
		status := migrationStatus(cfg)
		if status == "" {
			status = "migrations status not available in this build"
		}
		logger.Info("migrations status", "status", status)
	default:
		logger.Warn("unknown migrate command", "command", cmd)
	}
}
