package port

import (
	"context"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
)

// Querier runs statements against a database session or transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) error
	// QueryStrings returns the first column of every row as a string.
	QueryStrings(ctx context.Context, sql string, args ...any) ([]string, error)
}

// Session is a Querier that can open transactions. The transaction is
// committed when fn returns nil and rolled back otherwise.
type Session interface {
	Querier
	Transactional(ctx context.Context, fn func(ctx context.Context, tx Querier) error) error
}

// ConnectionConfig describes one named database connection.
type ConnectionConfig struct {
	Name     string            `mapstructure:"name" yaml:"name" json:"name"`
	Driver   domain.Driver     `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN      string            `mapstructure:"dsn" yaml:"dsn" json:"-"`
	Database string            `mapstructure:"database" yaml:"database" json:"database,omitempty"`
	Options  map[string]string `mapstructure:"options" yaml:"options" json:"options,omitempty"`
}

// Option returns the named option, or def when unset.
func (c ConnectionConfig) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Connection is a named, configured database handle.
type Connection interface {
	Session
	Name() string
	Config() ConnectionConfig
	// DisableConstraints runs fn on a single pinned session with foreign key
	// enforcement relaxed, and restores it afterwards.
	DisableConstraints(ctx context.Context, fn func(ctx context.Context, s Session) error) error
	Close()
}

// ConnectionRegistry hands out configured connections by name.
type ConnectionRegistry interface {
	Connection(ctx context.Context, name string) (Connection, error)
	// Names returns every configured connection name.
	Names() []string
	// ActiveConnections returns the connections eligible for automatic truncation.
	ActiveConnections() []string
}
