// Package repository provides the PostgreSQL-backed batch event archive.
package repository

import (
	"context"
	"fmt"
	"time"

	"textchunking/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxConnections = 10

// NewDatabaseConnection creates a new database connection pool from the
// application database configuration.
func NewDatabaseConnection(cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	} else {
		poolConfig.MaxConns = defaultMaxConnections
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return pool, nil
}
