package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

const (
	selectDirtySQL    = "SELECT table_name FROM " + domain.CollectorTable
	clearCollectorSQL = "DELETE FROM " + domain.CollectorTable
)

var _ port.TriggerSniffer = (*Sniffer)(nil)

// Sniffer tracks inserts on one connection with one AFTER INSERT trigger per
// table, each recording its table name in the collector table. Statement
// generation is delegated to a port.Dialect.
type Sniffer struct {
	conn     port.Connection
	dialect  port.Dialect
	logger   *slog.Logger
	inst     port.Instrumentation
	suffixes []string

	mu      sync.Mutex
	mode    domain.CollectorMode
	started bool
	booted  bool
	tables  []string
}

// NewSniffer builds a sniffer without touching the database. The collector
// mode and the system log suffixes are read from the connection options.
func NewSniffer(conn port.Connection, dialect port.Dialect, logger *slog.Logger, inst port.Instrumentation) (*Sniffer, error) {
	cfg := conn.Config()
	mode, err := domain.ParseMode(cfg.Option(domain.OptionCollectorMode, ""))
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
	}

	suffixes := domain.DefaultSystemLogSuffixes
	if v, ok := cfg.Options[domain.OptionSystemLogSuffixes]; ok {
		suffixes = domain.SplitList(v)
	}

	if logger == nil {
		logger = slog.Default()
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}

	return &Sniffer{
		conn:     conn,
		dialect:  dialect,
		logger:   logger.With(slog.String("db.connection", cfg.Name), slog.String("db.system", dialect.Name())),
		inst:     inst,
		suffixes: suffixes,
		mode:     mode,
	}, nil
}

// StartSniffer builds a sniffer and starts it.
func StartSniffer(ctx context.Context, conn port.Connection, dialect port.Dialect, logger *slog.Logger, inst port.Instrumentation) (*Sniffer, error) {
	s, err := NewSniffer(conn, dialect, logger, inst)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sniffer) Connection() port.Connection {
	return s.conn
}

func (s *Sniffer) Mode() domain.CollectorMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Started reports whether triggers and collector are installed.
func (s *Sniffer) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start loads the table cache, creates the collector and the triggers. On the
// very first start in temporary mode every table is truncated, since a fresh
// temporary collector knows nothing about rows left by a previous run.
func (s *Sniffer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(ctx)
}

func (s *Sniffer) start(ctx context.Context) error {
	if _, err := s.allTables(ctx, true); err != nil {
		return err
	}

	if ri, ok := s.dialect.(port.RoutineInstaller); ok {
		if err := ri.InstallRoutines(ctx, s.conn); err != nil {
			return fmt.Errorf("installing routines: %w", err)
		}
	}

	if err := s.dialect.CreateCollector(ctx, s.conn, s.mode); err != nil {
		return fmt.Errorf("creating collector: %w", err)
	}

	tracked, err := s.trackedTables(ctx, false)
	if err != nil {
		return err
	}
	if err := s.createTriggers(ctx, tracked); err != nil {
		return err
	}

	firstBoot := !s.booted
	s.started = true
	s.booted = true

	s.logger.InfoContext(ctx, "sniffer started",
		slog.String("mode", s.mode.String()),
		slog.Int("tables", len(tracked)),
	)

	if firstBoot && s.mode.IsTemp() {
		if err := s.markAllTablesAsDirty(ctx); err != nil {
			return err
		}
		if _, err := s.truncateDirtyTables(ctx); err != nil {
			return err
		}
	}
	return nil
}

// createTriggers replaces every managed trigger with one per table, in a
// single transaction.
func (s *Sniffer) createTriggers(ctx context.Context, tables []string) error {
	err := s.conn.Transactional(ctx, func(ctx context.Context, tx port.Querier) error {
		existing, err := s.managedTriggers(ctx, tx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			if err := s.dialect.DropTriggers(ctx, tx, existing); err != nil {
				return err
			}
		}
		if len(tables) == 0 {
			return nil
		}
		return s.dialect.CreateTriggers(ctx, tx, tables, s.mode)
	})
	if err != nil {
		return fmt.Errorf("creating triggers: %w", err)
	}
	return nil
}

// CreateTriggers refreshes the table list and replaces the managed triggers
// with one per tracked table. The collector and its rows are left alone, so
// tables created since the last start become tracked without losing what is
// already known dirty.
func (s *Sniffer) CreateTriggers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracked, err := s.trackedTables(ctx, true)
	if err != nil {
		return err
	}
	return s.createTriggers(ctx, tracked)
}

// DropTriggers removes the managed triggers only. Writes stop being recorded
// until CreateTriggers or Restart; user triggers and the collector stay.
func (s *Sniffer) DropTriggers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropTriggers(ctx)
}

func (s *Sniffer) dropTriggers(ctx context.Context) error {
	err := s.conn.Transactional(ctx, func(ctx context.Context, tx port.Querier) error {
		triggers, err := s.managedTriggers(ctx, tx)
		if err != nil || len(triggers) == 0 {
			return err
		}
		return s.dialect.DropTriggers(ctx, tx, triggers)
	})
	if err != nil {
		return fmt.Errorf("dropping triggers: %w", err)
	}
	return nil
}

// Shutdown drops the managed triggers, the collector and any helper routine.
func (s *Sniffer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown(ctx)
}

func (s *Sniffer) shutdown(ctx context.Context) error {
	if err := s.dropTriggers(ctx); err != nil {
		return err
	}

	if err := s.dialect.DropCollector(ctx, s.conn); err != nil {
		return fmt.Errorf("dropping collector: %w", err)
	}

	if ri, ok := s.dialect.(port.RoutineInstaller); ok {
		if err := ri.RemoveRoutines(ctx, s.conn); err != nil {
			return fmt.Errorf("removing routines: %w", err)
		}
	}

	s.started = false
	s.tables = nil
	s.logger.InfoContext(ctx, "sniffer shut down")
	return nil
}

// Restart rebuilds triggers and collector, picking up schema changes.
func (s *Sniffer) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restart(ctx)
}

func (s *Sniffer) restart(ctx context.Context) error {
	s.inst.IncrementSnifferRestarts(ctx, s.conn.Name())
	if err := s.shutdown(ctx); err != nil {
		return err
	}
	return s.start(ctx)
}

// SetMode switches the collector between temporary and permanent. Tables
// known dirty before the switch stay dirty after it.
func (s *Sniffer) SetMode(ctx context.Context, mode domain.CollectorMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == s.mode {
		return nil
	}
	if mode != domain.ModeTemp && mode != domain.ModePerm {
		return fmt.Errorf("%w %q", domain.ErrInvalidMode, mode)
	}

	var dirty []string
	if s.started {
		var err error
		if dirty, err = s.dirtyTables(ctx); err != nil {
			return err
		}
		if err := s.shutdown(ctx); err != nil {
			return err
		}
	}

	previous := s.mode
	s.mode = mode
	if err := s.start(ctx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "collector mode changed",
		slog.String("from", previous.String()),
		slog.String("to", mode.String()),
	)

	if len(dirty) == 0 {
		return nil
	}
	return s.dialect.MarkDirty(ctx, s.conn, dirty)
}

// AllTables returns the cached table list, refreshed when forced or empty.
func (s *Sniffer) AllTables(ctx context.Context, force bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allTables(ctx, force)
}

func (s *Sniffer) allTables(ctx context.Context, force bool) ([]string, error) {
	if !force && len(s.tables) > 0 {
		return slices.Clone(s.tables), nil
	}

	tables, err := s.dialect.FetchAllTables(ctx, s.conn)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables of %q: %w", domain.ErrConnectivity, s.conn.Name(), err)
	}
	s.tables = domain.TableSet(tables)
	return slices.Clone(s.tables), nil
}

func (s *Sniffer) TrackedTables(ctx context.Context, force bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackedTables(ctx, force)
}

func (s *Sniffer) trackedTables(ctx context.Context, force bool) ([]string, error) {
	all, err := s.allTables(ctx, force)
	if err != nil {
		return nil, err
	}
	return domain.Without(domain.WithoutSystemLogs(all, s.suffixes), domain.CollectorTable), nil
}

// DirtyTables reads the collector. A missing collector, typically a temporary
// one lost with its session, restarts the sniffer and reports every tracked
// table as dirty.
func (s *Sniffer) DirtyTables(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyTables(ctx)
}

func (s *Sniffer) dirtyTables(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryStrings(ctx, selectDirtySQL)
	if err == nil {
		return domain.Without(domain.TableSet(rows), domain.CollectorTable), nil
	}
	if !s.dialect.IsMissingTable(err) {
		return nil, fmt.Errorf("reading dirty tables: %w", err)
	}

	s.logger.WarnContext(ctx, "collector missing, restarting sniffer",
		slog.String("error.type", "stale_collector"),
		slog.String("error", err.Error()),
	)
	if err := s.restart(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStaleCollector, err)
	}
	return s.trackedTables(ctx, true)
}

// TruncateDirtyTables empties the dirty tables that still exist and clears
// the collector, in one transaction with foreign key checks relaxed. Nothing
// is sent to the database when no table is dirty.
func (s *Sniffer) TruncateDirtyTables(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncateDirtyTables(ctx)
}

func (s *Sniffer) truncateDirtyTables(ctx context.Context) ([]string, error) {
	dirty, err := s.dirtyTables(ctx)
	if err != nil {
		return nil, err
	}
	if len(dirty) == 0 {
		return []string{}, nil
	}

	all, err := s.allTables(ctx, true)
	if err != nil {
		return nil, err
	}
	targets := domain.Intersect(dirty, domain.Without(all, domain.CollectorTable))

	err = s.conn.DisableConstraints(ctx, func(ctx context.Context, sess port.Session) error {
		return sess.Transactional(ctx, func(ctx context.Context, tx port.Querier) error {
			if len(targets) > 0 {
				if err := s.dialect.Truncate(ctx, tx, targets); err != nil {
					return err
				}
			}
			return tx.Exec(ctx, clearCollectorSQL)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("truncating dirty tables: %w", err)
	}

	s.logger.DebugContext(ctx, "dirty tables truncated", slog.Any("tables", targets))
	return targets, nil
}

// MarkAllTablesAsDirty records every tracked table, and the collector itself,
// as dirty.
func (s *Sniffer) MarkAllTablesAsDirty(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markAllTablesAsDirty(ctx)
}

func (s *Sniffer) markAllTablesAsDirty(ctx context.Context) error {
	tracked, err := s.trackedTables(ctx, true)
	if err != nil {
		return err
	}
	if err := s.dialect.MarkDirty(ctx, s.conn, append(tracked, domain.CollectorTable)); err != nil {
		return fmt.Errorf("marking tables dirty: %w", err)
	}
	return nil
}

// DropTables drops the given tables with their dependents and clears the
// collector. The collector is never dropped, even when listed.
func (s *Sniffer) DropTables(ctx context.Context, tables []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := domain.Without(domain.TableSet(tables), domain.CollectorTable)
	if len(targets) == 0 {
		return nil
	}

	err := s.conn.DisableConstraints(ctx, func(ctx context.Context, sess port.Session) error {
		return sess.Transactional(ctx, func(ctx context.Context, tx port.Querier) error {
			return s.dialect.DropTables(ctx, tx, targets)
		})
	})
	if err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	s.tables = nil

	if err := s.conn.Exec(ctx, clearCollectorSQL); err != nil && !s.dialect.IsMissingTable(err) {
		return fmt.Errorf("clearing collector: %w", err)
	}

	s.logger.InfoContext(ctx, "tables dropped", slog.Any("tables", targets))
	return nil
}

// Triggers lists the managed triggers currently installed.
func (s *Sniffer) Triggers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.managedTriggers(ctx, s.conn)
}

func (s *Sniffer) managedTriggers(ctx context.Context, q port.Querier) ([]string, error) {
	all, err := s.dialect.FetchTriggers(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing triggers: %w", err)
	}
	managed := make([]string, 0, len(all))
	for _, t := range all {
		if domain.IsManagedTrigger(t) {
			managed = append(managed, t)
		}
	}
	return domain.TableSet(managed), nil
}
