// Package database owns the pgx connection pool shared by the API and the
// worker. Both binaries read the same tables; the pool settings differ only
// through configuration.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 10 * time.Second

// DB wraps the connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDatabase opens a connection pool and verifies it with a ping before
// returning.
func NewDatabase(ctx context.Context, databaseURL string, minConns, maxConns int) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(minConns)
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Database pool ready (min: %d, max: %d)", minConns, maxConns)

	return &DB{Pool: pool}, nil
}

// Close gracefully closes the connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		log.Println("Closing database pool...")
		db.Pool.Close()
	}
}

// Health checks database connectivity with a short deadline, for the health
// endpoint.
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Pool.Ping(ctx)
}
