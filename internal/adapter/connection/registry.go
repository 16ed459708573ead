// Package connection opens configured database connections by driver.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/guillermoBallester/tablespy/internal/adapter/mysql"
	"github.com/guillermoBallester/tablespy/internal/adapter/postgres"
	"github.com/guillermoBallester/tablespy/internal/adapter/sqlite"
	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// Opener connects to the database described by cfg.
type Opener func(ctx context.Context, cfg port.ConnectionConfig) (port.Connection, error)

// DefaultOpeners maps every built-in driver to its adapter.
func DefaultOpeners() map[domain.Driver]Opener {
	return map[domain.Driver]Opener{
		domain.DriverPostgres: func(ctx context.Context, cfg port.ConnectionConfig) (port.Connection, error) {
			return postgres.Open(ctx, cfg)
		},
		domain.DriverMySQL: func(ctx context.Context, cfg port.ConnectionConfig) (port.Connection, error) {
			return mysql.Open(ctx, cfg)
		},
		domain.DriverSQLite: func(ctx context.Context, cfg port.ConnectionConfig) (port.Connection, error) {
			return sqlite.Open(ctx, cfg)
		},
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithOpener registers or replaces the opener of a driver. A driver that is
// not built in becomes usable by the connections configured with it.
func WithOpener(driver domain.Driver, open Opener) Option {
	return func(r *Registry) {
		if d, err := domain.NormalizeDriver(string(driver)); err == nil {
			driver = d
		}
		r.openers[driver] = open
	}
}

// Registry holds the configured connections and opens each one on first use.
type Registry struct {
	configs map[string]port.ConnectionConfig
	openers map[domain.Driver]Opener
	logger  *slog.Logger

	mu   sync.Mutex
	open map[string]port.Connection
}

var _ port.ConnectionRegistry = (*Registry)(nil)

// NewRegistry validates the configured connections without opening any.
// Drivers other than the built-in ones are accepted; Connection fails with
// domain.ErrUnsupportedDriver when no opener was registered for them.
func NewRegistry(configs []port.ConnectionConfig, logger *slog.Logger, opts ...Option) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		configs: make(map[string]port.ConnectionConfig, len(configs)),
		openers: DefaultOpeners(),
		logger:  logger,
		open:    make(map[string]port.Connection),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, errors.New("connection without a name")
		}
		if cfg.Name == domain.AllConnections {
			return nil, fmt.Errorf("connection name %q is reserved", cfg.Name)
		}
		if _, dup := r.configs[cfg.Name]; dup {
			return nil, fmt.Errorf("connection %q configured twice", cfg.Name)
		}
		driver, err := domain.NormalizeDriver(string(cfg.Driver))
		if err != nil {
			return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
		}
		cfg.Driver = driver
		if _, err := domain.ParseMode(cfg.Option(domain.OptionCollectorMode, "")); err != nil {
			return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
		}
		if _, err := skipped(cfg); err != nil {
			return nil, err
		}
		r.configs[cfg.Name] = cfg
	}
	return r, nil
}

// Connection returns the named connection, opening it on first use.
func (r *Registry) Connection(ctx context.Context, name string) (port.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.open[name]; ok {
		return conn, nil
	}

	cfg, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownConnection, name)
	}
	open, ok := r.openers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w %q for connection %q", domain.ErrUnsupportedDriver, cfg.Driver, name)
	}

	conn, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.open[name] = conn
	r.logger.DebugContext(ctx, "connection opened",
		slog.String("db.connection", name),
		slog.String("db.system", cfg.Driver.String()),
	)
	return conn, nil
}

// Config returns the configuration of a connection without opening it.
func (r *Registry) Config(name string) (port.ConnectionConfig, bool) {
	cfg, ok := r.configs[name]
	return cfg, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ActiveConnections returns every configured connection not marked skip.
func (r *Registry) ActiveConnections() []string {
	var active []string
	for _, name := range r.Names() {
		if skip, _ := skipped(r.configs[name]); !skip {
			active = append(active, name)
		}
	}
	return active
}

// Close closes every opened connection. The registry can open them again.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, conn := range r.open {
		conn.Close()
		delete(r.open, name)
	}
}

func skipped(cfg port.ConnectionConfig) (bool, error) {
	v := cfg.Option(domain.OptionSkip, "false")
	skip, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("connection %q: invalid %s option %q: %w", cfg.Name, domain.OptionSkip, v, err)
	}
	return skip, nil
}
