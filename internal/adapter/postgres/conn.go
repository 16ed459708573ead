package postgres

import (
	"context"
	"fmt"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// session runs statements on a pool, a pinned connection or a transaction.
// Every statement sent through Exec is vetted by the validator first.
type session struct {
	db        dbtx
	validator port.StatementValidator
	// deferred makes every transaction start with SET CONSTRAINTS ALL DEFERRED.
	deferred bool
}

func (s *session) Exec(ctx context.Context, sql string, args ...any) error {
	if s.validator != nil {
		if err := s.validator.Validate(sql); err != nil {
			return fmt.Errorf("rejected statement: %w", err)
		}
	}
	_, err := s.db.Exec(ctx, sql, args...)
	return err
}

func (s *session) QueryStrings(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *session) Transactional(ctx context.Context, fn func(ctx context.Context, tx port.Querier) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inner := &session{db: tx, validator: s.validator}
	if s.deferred {
		if err := inner.Exec(ctx, stmtDeferConstraints); err != nil {
			return fmt.Errorf("deferring constraints: %w", err)
		}
	}

	if err := fn(ctx, inner); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Connection is a named Postgres connection backed by a pgx pool.
type Connection struct {
	session
	cfg  port.ConnectionConfig
	pool *pgxpool.Pool
}

var _ port.Connection = (*Connection)(nil)

func NewConnection(cfg port.ConnectionConfig, pool *pgxpool.Pool, validator port.StatementValidator) *Connection {
	return &Connection{
		session: session{db: pool, validator: validator},
		cfg:     cfg,
		pool:    pool,
	}
}

// Open connects to cfg.DSN. Temporary collector mode gets a single-session
// pool. Any failure to reach the database is reported as ErrConnectivity.
func Open(ctx context.Context, cfg port.ConnectionConfig) (*Connection, error) {
	mode, err := domain.ParseMode(cfg.Option(domain.OptionCollectorMode, ""))
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
	}

	pool, err := NewPool(ctx, cfg.DSN, mode.IsTemp())
	if err != nil {
		return nil, fmt.Errorf("%w: connection %q: %w", domain.ErrConnectivity, cfg.Name, err)
	}
	return NewConnection(cfg, pool, domain.NewDDLValidator()), nil
}

func (c *Connection) Name() string                  { return c.cfg.Name }
func (c *Connection) Config() port.ConnectionConfig { return c.cfg }
func (c *Connection) Close()                        { c.pool.Close() }

// Pool exposes the underlying pool, e.g. for fixture loaders.
func (c *Connection) Pool() *pgxpool.Pool { return c.pool }

// DisableConstraints pins one pooled connection and defers constraint checks
// in every transaction fn opens on it. Truncation and drops also CASCADE.
func (c *Connection) DisableConstraints(ctx context.Context, fn func(ctx context.Context, s port.Session) error) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	return fn(ctx, &session{db: conn, validator: c.validator, deferred: true})
}
