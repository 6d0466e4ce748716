package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Swipe bursts fan many short row-lock transactions through the pool, so a
// floor on MaxConns keeps the retry loop from queueing behind itself.
const (
	minPoolConns    = 8
	maxConnIdleTime = 5 * time.Minute
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MinConns = 0
	if cfg.MaxConns < minPoolConns {
		cfg.MaxConns = minPoolConns
	}
	cfg.MaxConnIdleTime = maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	return pool, nil
}
