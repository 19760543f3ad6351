// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package postgres provides the managed PostgreSQL connection pool and the
// context-carried transaction used by the account repositories.
//
// # Architecture
//
// This package is part of the Infrastructure layer. Repositories never hold a
// transaction themselves: they ask [Conn] for the active one, so a service can
// group several repository calls with [Transactor.WithinTx].
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/piggybank/internal/platform/constants"
)

// PoolSettings tunes the pool. The zero value of a field keeps its default.
type PoolSettings struct {
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	StatementTimeout time.Duration
}

// DefaultPoolSettings fit an auth workload: short queries and bursty logins.
var DefaultPoolSettings = PoolSettings{
	MaxConns:         20,
	MinConns:         2,
	MaxConnLifetime:  time.Hour,
	MaxConnIdleTime:  10 * time.Minute,
	StatementTimeout: constants.GlobalRequestTimeout,
}

const (
	healthCheckPeriod = time.Minute
	connectTimeout    = 5 * time.Second
	pingTimeout       = 2 * time.Second
)

/*
NewPool creates and validates a PostgreSQL connection pool with
[DefaultPoolSettings].

Parameters:
  - ctx: Bounds the initial connection attempt
  - dsn: A libpq-compatible connection string or postgres:// URL
  - logger: Structured logger for pool-level events

Returns:
  - *pgxpool.Pool: A pool that answered a ping
  - error: Invalid DSN or unreachable server
*/
func NewPool(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	return NewPoolWithSettings(ctx, dsn, DefaultPoolSettings, logger)
}

// NewPoolWithSettings is [NewPool] with explicit tuning.
func NewPoolWithSettings(ctx context.Context, dsn string, settings PoolSettings, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}
	settings.apply(poolConfig)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	stats := pool.Stat()
	logger.Info("postgres_pool_connected",
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(stats.MaxConns())),
		slog.Int("total_conns", int(stats.TotalConns())),
	)

	return pool, nil
}

func (settings PoolSettings) apply(poolConfig *pgxpool.Config) {
	if settings.MaxConns > 0 {
		poolConfig.MaxConns = settings.MaxConns
	}
	if settings.MinConns > 0 {
		poolConfig.MinConns = settings.MinConns
	}
	if settings.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = settings.MaxConnLifetime
	}
	if settings.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = settings.MaxConnIdleTime
	}
	poolConfig.HealthCheckPeriod = healthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout
	poolConfig.ConnConfig.RuntimeParams["application_name"] = constants.AppName

	statementTimeout := settings.StatementTimeout
	poolConfig.AfterConnect = func(ctx context.Context, connection *pgx.Conn) error {
		// Unqualified names resolve to the account schema first.
		session := fmt.Sprintf("SET search_path = %s, public", pgx.Identifier{constants.SchemaUsers}.Sanitize())
		if _, err := connection.Exec(ctx, session); err != nil {
			return err
		}
		if statementTimeout <= 0 {
			return nil
		}
		_, err := connection.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", statementTimeout.Milliseconds()))
		return err
	}
}

// Ping verifies that the PostgreSQL connection pool is healthy.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}

	return nil
}
