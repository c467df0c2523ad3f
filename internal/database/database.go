// Package database provides PostgreSQL connection management using pgx and
// the embedded schema migrations.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/config"
)

// DB wraps the pgx connection pool.
type DB struct {
	Pool    *pgxpool.Pool
	Queries *QueryLogger
	logger  *zap.Logger
}

// New creates a connection pool with query tracing and verifies it.
func New(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConnections)
	}
	if cfg.ConnectionMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnectionMaxLifetime
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	queries := NewQueryLogger(nil, logger)
	poolConfig.ConnConfig.Tracer = queries

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.Uint16("port", poolConfig.ConnConfig.Port),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_connections", poolConfig.MaxConns),
	)

	return &DB{Pool: pool, Queries: queries, logger: logger}, nil
}

// Close logs query statistics and closes the pool.
func (db *DB) Close() {
	if db.Pool == nil {
		return
	}
	db.Queries.LogStats()
	db.Pool.Close()
	db.logger.Info("database connection closed")
}

// Ping checks the database connection for the readiness check.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
