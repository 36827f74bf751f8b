// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command sessiond is the entry point for the CareOps session daemon.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open the durable credential store (bolt, redis or memory).
//  4. Build the credential vault and change broadcasters.
//  5. Connect the platform backend client.
//  6. Connect the audit database and run migrations (optional).
//  7. Start the session manager.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/careops/internal/access"
	"github.com/taibuivan/careops/internal/api"
	"github.com/taibuivan/careops/internal/audit"
	"github.com/taibuivan/careops/internal/backend"
	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/platform/config"
	"github.com/taibuivan/careops/internal/platform/constants"
	"github.com/taibuivan/careops/internal/platform/metrics"
	"github.com/taibuivan/careops/internal/platform/migration"
	pgstore "github.com/taibuivan/careops/internal/platform/postgres"
	redisstore "github.com/taibuivan/careops/internal/platform/redis"
	"github.com/taibuivan/careops/internal/session"
	"github.com/taibuivan/careops/pkg/slice"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("credential_backend", cfg.CredentialBackend),
		slog.Bool("audit_enabled", cfg.AuditEnabled()),
	)

	// Root context for the process; cancelled on shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Startup deadline so misconfiguration is caught quickly.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	registry, sessionMetrics := metrics.NewRegistry()

	// ── 3. Redis (optional) ───────────────────────────────────────────────
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_error", slog.Any("error", cerr))
			}
		}()
	}

	// ── 4. Credential Vault ───────────────────────────────────────────────
	var durable credential.Store
	switch cfg.CredentialBackend {
	case config.BackendBolt:
		bolt, err := credential.OpenBoltStore(cfg.BoltPath, cfg.SessionNamespace)
		must(log, err, "open bolt credential store")
		defer func() {
			log.Info("closing_bolt_store")
			if cerr := bolt.Close(); cerr != nil {
				log.Error("bolt_close_error", slog.Any("error", cerr))
			}
		}()
		durable = bolt
	case config.BackendRedis:
		durable = credential.NewRedisStore(rdb, cfg.SessionNamespace)
	default:
		durable = credential.NewMemoryStore()
	}

	broadcasters := []credential.Broadcaster{credential.NewLocalBroadcaster()}
	if rdb != nil {
		broadcasters = append(broadcasters, credential.NewRedisBroadcaster(rdb, cfg.SessionNamespace))
	}

	vault := credential.NewVault(durable, credential.NewMemoryStore(), log, broadcasters...)

	// ── 5. Platform Backend ───────────────────────────────────────────────
	client, err := backend.NewClient(backend.Config{
		BaseURL:        cfg.BackendBaseURL,
		SwitchTeamPath: cfg.BackendSwitchTeamPath,
		Timeout:        cfg.BackendTimeout,
		CookieTTL:      cfg.CookieTTL,
	})
	must(log, err, "configure backend client")

	// ── 6. Audit Trail (optional) ─────────────────────────────────────────
	var auditStore audit.Store = audit.NopRecorder{}
	var checkAudit func(context.Context) error

	if cfg.AuditEnabled() {
		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing_postgres_pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

		postgresStore := audit.NewPostgresStore(pool)
		auditStore = postgresStore
		checkAudit = postgresStore.Ping
	}

	// ── 7. Session ────────────────────────────────────────────────────────
	manager := session.NewManager(vault, session.Options{
		PollInterval: cfg.PollInterval,
		Client:       client,
		Mirror:       client,
		Recorder:     auditStore,
		Metrics:      sessionMetrics,
	}, log)

	gate, err := access.NewGate(
		access.Prefixes{Admin: cfg.AdminPathPrefix, SuperAdmin: cfg.SuperAdminPathPrefix},
		slice.Map(session.SuperAdminSynonyms(), func(role session.Role) string { return string(role) }),
	)
	must(log, err, "build access gate")

	manager.Start(rootCtx)
	defer manager.Close()

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckCredentials: vault.Ping,
		CheckAudit:       checkAudit,
	}, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   metrics.Handler(registry),
		Session: session.NewHandler(manager, gate, auditStore, session.CookieOptions{
			TTL:    cfg.CookieTTL,
			Secure: cfg.IsProduction(),
		}),
	}

	server := api.NewServer(rootCtx, cfg, log, manager, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	// Closing the session ends open event streams so the server can drain.
	manager.Close()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting_down_server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
