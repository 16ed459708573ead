package port

import (
	"context"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
)

// Sniffer tracks writes on one connection and truncates what was touched.
type Sniffer interface {
	Connection() Connection
	DirtyTables(ctx context.Context) ([]string, error)
	TruncateDirtyTables(ctx context.Context) ([]string, error)
	// AllTables lists every base table, including logs and the collector.
	AllTables(ctx context.Context, force bool) ([]string, error)
	// TrackedTables lists every table except migration logs and the collector.
	TrackedTables(ctx context.Context, force bool) ([]string, error)
	MarkAllTablesAsDirty(ctx context.Context) error
	DropTables(ctx context.Context, tables []string) error
}

// TriggerSniffer is a Sniffer backed by database triggers and a collector table.
type TriggerSniffer interface {
	Sniffer
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Restart(ctx context.Context) error
	Mode() domain.CollectorMode
	SetMode(ctx context.Context, mode domain.CollectorMode) error
	// Triggers lists the managed triggers currently installed.
	Triggers(ctx context.Context) ([]string, error)
	// CreateTriggers replaces the managed triggers with one per tracked table.
	CreateTriggers(ctx context.Context) error
	// DropTriggers removes the managed triggers, leaving user triggers alone.
	DropTriggers(ctx context.Context) error
}

// SnifferFactory builds a sniffer for a connection.
type SnifferFactory func(ctx context.Context, conn Connection) (Sniffer, error)

// SnifferProvider resolves the sniffer of a connection.
type SnifferProvider interface {
	Get(ctx context.Context, connection string) (Sniffer, error)
}
