package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// sessionLifetime keeps the only connection of a single-session pool alive
// for the whole test run.
const sessionLifetime = 24 * time.Hour

// NewPool opens a pool and pings it. A single-session pool holds exactly one
// connection that is never recycled, so session-scoped objects such as a
// temporary collector stay visible to every caller.
func NewPool(ctx context.Context, databaseURL string, singleSession bool) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	if singleSession {
		config.MaxConns = 1
		config.MinConns = 1
		config.MaxConnLifetime = sessionLifetime
		config.MaxConnIdleTime = sessionLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database (10s timeout): %w", err)
	}

	return pool, nil
}
