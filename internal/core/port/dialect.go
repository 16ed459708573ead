package port

import (
	"context"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
)

// Dialect generates and runs the database-specific statements a trigger
// based sniffer needs. Methods receive the Querier to run on so callers
// decide on transactions and session pinning.
type Dialect interface {
	Name() string
	FetchAllTables(ctx context.Context, q Querier) ([]string, error)
	FetchTriggers(ctx context.Context, q Querier) ([]string, error)
	CreateCollector(ctx context.Context, q Querier, mode domain.CollectorMode) error
	DropCollector(ctx context.Context, q Querier) error
	CreateTriggers(ctx context.Context, q Querier, tables []string, mode domain.CollectorMode) error
	DropTriggers(ctx context.Context, q Querier, triggers []string) error
	MarkDirty(ctx context.Context, q Querier, tables []string) error
	// Truncate empties tables and resets their identity counters.
	Truncate(ctx context.Context, q Querier, tables []string) error
	DropTables(ctx context.Context, q Querier, tables []string) error
	// IsMissingTable reports whether err means a table does not exist.
	IsMissingTable(err error) bool
}

// RoutineInstaller is implemented by dialects whose triggers call helper
// routines that must exist before triggers are created.
type RoutineInstaller interface {
	InstallRoutines(ctx context.Context, q Querier) error
	RemoveRoutines(ctx context.Context, q Querier) error
}
