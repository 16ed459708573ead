package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// SnifferRegistry caches one sniffer per connection name, built lazily by
// the factory matching the connection's driver or its sniffer option.
type SnifferRegistry struct {
	conns  port.ConnectionRegistry
	logger *slog.Logger

	mu        sync.Mutex
	factories map[string]port.SnifferFactory
	defaults  map[domain.Driver]string
	sniffers  map[string]port.Sniffer
}

func NewSnifferRegistry(conns port.ConnectionRegistry, logger *slog.Logger) *SnifferRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnifferRegistry{
		conns:     conns,
		logger:    logger,
		factories: make(map[string]port.SnifferFactory),
		defaults:  make(map[domain.Driver]string),
		sniffers:  make(map[string]port.Sniffer),
	}
}

// Register adds a factory under name, replacing any previous one. Connections
// select it with the sniffer option.
func (r *SnifferRegistry) Register(name string, factory port.SnifferFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// RegisterDefault registers factory under name and makes it the default for driver.
func (r *SnifferRegistry) RegisterDefault(driver domain.Driver, name string, factory port.SnifferFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	r.defaults[driver] = name
}

// Get returns the cached sniffer for a connection, building and starting it
// on first use.
func (r *SnifferRegistry) Get(ctx context.Context, name string) (port.Sniffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sniffers[name]; ok {
		return s, nil
	}

	conn, err := r.conns.Connection(ctx, name)
	if err != nil {
		return nil, err
	}

	cfg := conn.Config()
	factoryName := cfg.Option(domain.OptionSniffer, r.defaults[cfg.Driver])
	factory, ok := r.factories[factoryName]
	if !ok {
		return nil, fmt.Errorf("%w %q for connection %q", domain.ErrUnsupportedDriver, cfg.Driver, name)
	}

	s, err := factory(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("building sniffer for %q: %w", name, err)
	}

	r.sniffers[name] = s
	r.logger.DebugContext(ctx, "sniffer registered",
		slog.String("db.connection", name),
		slog.String("sniffer", factoryName),
	)
	return s, nil
}

// GetTriggerSniffer is Get restricted to trigger based sniffers.
func (r *SnifferRegistry) GetTriggerSniffer(ctx context.Context, name string) (port.TriggerSniffer, error) {
	s, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	ts, ok := s.(port.TriggerSniffer)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotTriggerBased, name)
	}
	return ts, nil
}

// Forget drops the cached sniffer so the next Get builds a fresh one.
func (r *SnifferRegistry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sniffers, name)
}

// Loaded returns the names of the connections with a cached sniffer.
func (r *SnifferRegistry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.sniffers))
}

// Shutdown stops every cached trigger based sniffer and empties the cache.
func (r *SnifferRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(r.sniffers)) {
		ts, ok := r.sniffers[name].(port.TriggerSniffer)
		if !ok {
			continue
		}
		if err := ts.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down sniffer %q: %w", name, err))
		}
	}
	clear(r.sniffers)
	return errors.Join(errs...)
}
