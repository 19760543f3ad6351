// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Piggybank HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and Redis.
//  4. Run database migrations (idempotent).
//  5. Seed roles, and the default users in development.
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
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

	"github.com/taibuivan/piggybank/internal/api"
	"github.com/taibuivan/piggybank/internal/platform/config"
	"github.com/taibuivan/piggybank/internal/platform/constants"
	"github.com/taibuivan/piggybank/internal/platform/mail"
	"github.com/taibuivan/piggybank/internal/platform/migration"
	pgstore "github.com/taibuivan/piggybank/internal/platform/postgres"
	redisstore "github.com/taibuivan/piggybank/internal/platform/redis"
	"github.com/taibuivan/piggybank/internal/platform/sec"
	"github.com/taibuivan/piggybank/internal/platform/throttle"
	"github.com/taibuivan/piggybank/internal/users/account"
	"github.com/taibuivan/piggybank/internal/users/auth"
	"github.com/taibuivan/piggybank/internal/users/identity"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		level.Set(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("reset_transport", cfg.ResetTokenTransport),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	startupCtx, startupCancel := context.WithTimeout(rootCtx, constants.StartupTimeout)
	defer startupCancel()

	// ── 3. PostgreSQL & Redis ─────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("postgres_pool_closing")
		pool.Close()
	}()

	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("redis_client_closing")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 4. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 5. Security primitives ────────────────────────────────────────────
	hasher, err := sec.NewHasher(cfg.PasswordHasher)
	must(log, err, "initialize password hasher")

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Lifetime: cfg.TokenLifetime(),
	})
	must(log, err, "initialize token service")

	resetTokens, err := sec.NewResetTokenProvider(cfg.JWT.Secret, cfg.ResetTokenLifetime)
	must(log, err, "initialize reset token provider")

	// ── 6. Identity & seeding ─────────────────────────────────────────────
	userRepository := identity.NewUserRepository(pool)
	roleRepository := identity.NewRoleRepository(pool)
	users := identity.NewUserManager(userRepository, roleRepository, hasher, resetTokens, identity.DefaultPasswordPolicy)
	accounts := account.NewService(users, pgstore.NewTransactor(pool), log)

	must(log, identity.SeedRoles(startupCtx, identity.NewRoleManager(roleRepository), sec.DefaultRoles, log), "seed roles")
	if cfg.IsDevelopment() && cfg.SeedDefaultUsers {
		must(log, accounts.SeedDefaultUsers(startupCtx, account.DefaultUsers), "seed default users")
	}

	// ── 7. Collaborators ──────────────────────────────────────────────────
	var mailer mail.Sender
	if cfg.UsesSMTP() {
		mailer, err = mail.NewSMTPSender(mail.SMTPConfig{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			EnableSSL: cfg.SMTP.EnableSSL,
			From:      cfg.SMTP.From,
		})
		must(log, err, "initialize smtp sender")
	} else {
		mailer = mail.NewLogSender(log)
	}

	throttler, err := throttle.NewLimiter(rdb, cfg.AuthThrottleLimit, cfg.AuthThrottleWindow)
	must(log, err, "initialize auth throttle")

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		CheckCache:    func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
	}, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	authService := auth.NewService(users, accounts, tokens, mailer, auth.ResetTransport(cfg.ResetTokenTransport), log)

	server := api.NewServer(rootCtx, cfg, log, tokens, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, throttler),
		Account:   account.NewHandler(accounts),
	})

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// Limited to startup wiring. After startup, all errors are returned and handled.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
