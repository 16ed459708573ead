// Package sqldb adapts database/sql handles to the connection port, for the
// drivers that ship as database/sql drivers (MySQL, SQLite).
package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// ConstraintToggle relaxes foreign key enforcement on a pinned session and
// returns the statement that restores the previous setting.
type ConstraintToggle func(ctx context.Context, q port.Querier) (restore string, err error)

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type beginner interface {
	execQuerier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type querier struct {
	db execQuerier
}

func (q querier) Exec(ctx context.Context, query string, args ...any) error {
	_, err := q.db.ExecContext(ctx, query, args...)
	return err
}

func (q querier) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

type session struct {
	querier
	b beginner
}

func newSession(b beginner) *session {
	return &session{querier: querier{db: b}, b: b}
}

func (s *session) Transactional(ctx context.Context, fn func(ctx context.Context, tx port.Querier) error) error {
	tx, err := s.b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, querier{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Connection is a named connection over a database/sql pool.
type Connection struct {
	*session
	cfg    port.ConnectionConfig
	db     *sql.DB
	toggle ConstraintToggle
}

var _ port.Connection = (*Connection)(nil)

func NewConnection(cfg port.ConnectionConfig, db *sql.DB, toggle ConstraintToggle) *Connection {
	return &Connection{
		session: newSession(db),
		cfg:     cfg,
		db:      db,
		toggle:  toggle,
	}
}

// Open wraps db, pings it and applies the pool settings the collector mode
// needs. db is closed on failure; failing to reach the database is reported
// as ErrConnectivity.
func Open(ctx context.Context, cfg port.ConnectionConfig, db *sql.DB, toggle ConstraintToggle) (*Connection, error) {
	mode, err := domain.ParseMode(cfg.Option(domain.OptionCollectorMode, ""))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
	}
	if mode.IsTemp() {
		SingleSession(db)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: connection %q: pinging database (10s timeout): %w", domain.ErrConnectivity, cfg.Name, err)
	}
	return NewConnection(cfg, db, toggle), nil
}

// SingleSession restricts db to one connection that is never recycled, so
// session-scoped objects stay visible to every caller.
func SingleSession(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
}

func (c *Connection) Name() string                  { return c.cfg.Name }
func (c *Connection) Config() port.ConnectionConfig { return c.cfg }
func (c *Connection) Close()                        { _ = c.db.Close() }

// DB exposes the underlying pool, e.g. for fixture loaders.
func (c *Connection) DB() *sql.DB { return c.db }

// DisableConstraints pins one connection, relaxes foreign key checks on it
// outside any transaction and restores them after fn. A connection whose
// setting cannot be restored is discarded instead of going back to the pool.
func (c *Connection) DisableConstraints(ctx context.Context, fn func(ctx context.Context, s port.Session) error) error {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	pinned := newSession(conn)
	if c.toggle == nil {
		return fn(ctx, pinned)
	}

	restore, err := c.toggle(ctx, pinned)
	if err != nil {
		return fmt.Errorf("disabling constraints: %w", err)
	}

	fnErr := fn(ctx, pinned)

	if err := pinned.Exec(context.WithoutCancel(ctx), restore); err != nil {
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		return errors.Join(fnErr, fmt.Errorf("restoring constraints: %w", err))
	}
	return fnErr
}
