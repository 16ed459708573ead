package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errMissingTable = errors.New("no such table")

// --- in-memory database ---

type fakeDB struct {
	tables    map[string]int
	collector bool
	mode      domain.CollectorMode
	dirty     map[string]bool
	triggers  map[string]bool

	txCount         int
	constraintsOff  int
	collectorsBuilt int
	routines        int
	failTables      error
	failDirtyRead   error
}

func newFakeDB(tables ...string) *fakeDB {
	db := &fakeDB{
		tables:   map[string]int{},
		dirty:    map[string]bool{},
		triggers: map[string]bool{"user_audit_trigger": true},
	}
	for _, t := range tables {
		db.tables[t] = 0
	}
	return db
}

// insert mimics a row insert firing the managed trigger.
func (db *fakeDB) insert(table string) {
	db.tables[table]++
	if db.triggers[domain.TriggerName(table)] && db.collector {
		db.dirty[table] = true
		if db.mode == domain.ModePerm {
			db.dirty[domain.CollectorTable] = true
		}
	}
}

func (db *fakeDB) managedTriggers() []string {
	var out []string
	for t := range db.triggers {
		if domain.IsManagedTrigger(t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// --- port.Connection ---

type fakeConn struct {
	db  *fakeDB
	cfg port.ConnectionConfig
}

func newFakeConn(db *fakeDB, options map[string]string) *fakeConn {
	return &fakeConn{db: db, cfg: port.ConnectionConfig{Name: "test", Driver: domain.DriverSQLite, Options: options}}
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) error {
	if sql == clearCollectorSQL {
		if !c.db.collector {
			return errMissingTable
		}
		clear(c.db.dirty)
	}
	return nil
}

func (c *fakeConn) QueryStrings(_ context.Context, sql string, _ ...any) ([]string, error) {
	if sql != selectDirtySQL {
		return nil, nil
	}
	if c.db.failDirtyRead != nil {
		return nil, c.db.failDirtyRead
	}
	if !c.db.collector {
		return nil, errMissingTable
	}
	return slices.Collect(maps.Keys(c.db.dirty)), nil
}

func (c *fakeConn) Transactional(ctx context.Context, fn func(ctx context.Context, tx port.Querier) error) error {
	c.db.txCount++
	return fn(ctx, c)
}

func (c *fakeConn) DisableConstraints(ctx context.Context, fn func(ctx context.Context, s port.Session) error) error {
	c.db.constraintsOff++
	return fn(ctx, c)
}

func (c *fakeConn) Name() string                  { return c.cfg.Name }
func (c *fakeConn) Config() port.ConnectionConfig { return c.cfg }
func (c *fakeConn) Close()                        {}

// --- port.Dialect ---

type fakeDialect struct {
	db *fakeDB
}

func (d *fakeDialect) Name() string { return "fake" }

func (d *fakeDialect) FetchAllTables(context.Context, port.Querier) ([]string, error) {
	if d.db.failTables != nil {
		return nil, d.db.failTables
	}
	out := slices.Collect(maps.Keys(d.db.tables))
	if d.db.collector && d.db.mode == domain.ModePerm {
		out = append(out, domain.CollectorTable)
	}
	return out, nil
}

func (d *fakeDialect) FetchTriggers(context.Context, port.Querier) ([]string, error) {
	return slices.Collect(maps.Keys(d.db.triggers)), nil
}

func (d *fakeDialect) CreateCollector(_ context.Context, _ port.Querier, mode domain.CollectorMode) error {
	d.db.collector = true
	d.db.mode = mode
	d.db.collectorsBuilt++
	return nil
}

func (d *fakeDialect) DropCollector(context.Context, port.Querier) error {
	d.db.collector = false
	clear(d.db.dirty)
	return nil
}

func (d *fakeDialect) CreateTriggers(_ context.Context, _ port.Querier, tables []string, _ domain.CollectorMode) error {
	for _, t := range tables {
		d.db.triggers[domain.TriggerName(t)] = true
	}
	return nil
}

func (d *fakeDialect) DropTriggers(_ context.Context, _ port.Querier, triggers []string) error {
	for _, t := range triggers {
		delete(d.db.triggers, t)
	}
	return nil
}

func (d *fakeDialect) MarkDirty(_ context.Context, _ port.Querier, tables []string) error {
	if !d.db.collector {
		return errMissingTable
	}
	for _, t := range tables {
		d.db.dirty[t] = true
	}
	return nil
}

func (d *fakeDialect) Truncate(_ context.Context, _ port.Querier, tables []string) error {
	for _, t := range tables {
		if _, ok := d.db.tables[t]; !ok {
			return errMissingTable
		}
		d.db.tables[t] = 0
	}
	return nil
}

func (d *fakeDialect) DropTables(_ context.Context, _ port.Querier, tables []string) error {
	for _, t := range tables {
		delete(d.db.tables, t)
		delete(d.db.triggers, domain.TriggerName(t))
	}
	return nil
}

func (d *fakeDialect) IsMissingTable(err error) bool {
	return errors.Is(err, errMissingTable)
}

type routineDialect struct {
	*fakeDialect
}

func (d routineDialect) InstallRoutines(context.Context, port.Querier) error {
	d.db.routines++
	return nil
}

func (d routineDialect) RemoveRoutines(context.Context, port.Querier) error {
	d.db.routines--
	return nil
}

// --- port.Instrumentation ---

type countingInst struct {
	port.NoopInstrumentation
	restarts    int
	truncations int
	errors      int
	tables      int
}

func (c *countingInst) IncrementSnifferRestarts(context.Context, string)    { c.restarts++ }
func (c *countingInst) IncrementTruncations(context.Context, string)        { c.truncations++ }
func (c *countingInst) IncrementTruncationErrors(context.Context, string)   { c.errors++ }
func (c *countingInst) AddTruncatedTables(_ context.Context, _ string, n int) { c.tables += n }

// --- port.ConnectionRegistry ---

type fakeConnRegistry struct {
	conns  map[string]*fakeConn
	active []string
}

func newFakeConnRegistry(conns ...*fakeConn) *fakeConnRegistry {
	r := &fakeConnRegistry{conns: map[string]*fakeConn{}}
	for _, c := range conns {
		r.conns[c.cfg.Name] = c
		r.active = append(r.active, c.cfg.Name)
	}
	return r
}

func (r *fakeConnRegistry) Connection(_ context.Context, name string) (port.Connection, error) {
	c, ok := r.conns[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", domain.ErrUnknownConnection, name)
	}
	return c, nil
}

func (r *fakeConnRegistry) Names() []string             { return slices.Sorted(maps.Keys(r.conns)) }
func (r *fakeConnRegistry) ActiveConnections() []string { return r.active }

func namedConn(name string, driver domain.Driver, db *fakeDB, options map[string]string) *fakeConn {
	return &fakeConn{db: db, cfg: port.ConnectionConfig{Name: name, Driver: driver, Options: options}}
}

func fakeFactory(inst port.Instrumentation) port.SnifferFactory {
	return func(ctx context.Context, conn port.Connection) (port.Sniffer, error) {
		db := conn.(*fakeConn).db
		return StartSniffer(ctx, conn, &fakeDialect{db: db}, testLogger(), inst)
	}
}

// --- port.PolicyStore ---

type memStore struct {
	policy domain.TruncationPolicy
	err    error
	sets   int
}

func (m *memStore) Policy(context.Context) (domain.TruncationPolicy, error) {
	return m.policy.Clone(), m.err
}

func (m *memStore) SetPolicy(_ context.Context, p domain.TruncationPolicy) error {
	m.sets++
	m.policy = p.Clone()
	return nil
}

type resettableStore struct {
	memStore
	resets int
}

func (r *resettableStore) Reset() {
	r.resets++
	r.policy = domain.TruncationPolicy{}
}

type overrideFunc func(p *domain.TruncationPolicy, active []string)

func (f overrideFunc) Override(p *domain.TruncationPolicy, active []string) { f(p, active) }

// --- port.TruncationAuditor ---

type recordingAuditor struct {
	entries []port.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, e port.AuditEntry) { a.entries = append(a.entries, e) }
func (a *recordingAuditor) Close() error                                { return nil }

// --- port.FixtureLoader ---

type recordingLoader struct {
	loaded []string
}

func (l *recordingLoader) Load(_ context.Context, test string) error {
	l.loaded = append(l.loaded, test)
	return nil
}
