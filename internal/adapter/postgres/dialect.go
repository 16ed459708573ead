package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/jackc/pgx/v5/pgconn"
)

// undefinedTable is SQLSTATE 42P01.
const undefinedTable = "42P01"

// Dialect implements port.Dialect for PostgreSQL. Triggers share one
// plpgsql function installed by InstallRoutines.
type Dialect struct{}

var (
	_ port.Dialect          = Dialect{}
	_ port.RoutineInstaller = Dialect{}
)

func NewDialect() Dialect {
	return Dialect{}
}

func (Dialect) Name() string { return "postgresql" }

// FetchAllTables lists base tables of the current schema.
func (Dialect) FetchAllTables(ctx context.Context, q port.Querier) ([]string, error) {
	tables, err := q.QueryStrings(ctx, queryListTables)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return tables, nil
}

func (Dialect) FetchTriggers(ctx context.Context, q port.Querier) ([]string, error) {
	triggers, err := q.QueryStrings(ctx, queryListTriggers)
	if err != nil {
		return nil, fmt.Errorf("listing triggers: %w", err)
	}
	return triggers, nil
}

func (Dialect) InstallRoutines(ctx context.Context, q port.Querier) error {
	return q.Exec(ctx, fmt.Sprintf(stmtCreateRoutine, domain.CollectorTable))
}

func (Dialect) RemoveRoutines(ctx context.Context, q port.Querier) error {
	return q.Exec(ctx, stmtDropRoutine)
}

func (Dialect) CreateCollector(ctx context.Context, q port.Querier, mode domain.CollectorMode) error {
	temporary := ""
	if mode.IsTemp() {
		temporary = "TEMPORARY "
	}
	return q.Exec(ctx, fmt.Sprintf(stmtCreateCollector, temporary, domain.CollectorTable))
}

func (Dialect) DropCollector(ctx context.Context, q port.Querier) error {
	return q.Exec(ctx, fmt.Sprintf(stmtDropCollector, domain.CollectorTable))
}

// CreateTriggers creates one row-level AFTER INSERT trigger per table. In
// permanent mode the collector name is passed along so the collector lists
// itself once anything was written.
func (Dialect) CreateTriggers(ctx context.Context, q port.Querier, tables []string, mode domain.CollectorMode) error {
	arg := ""
	if !mode.IsTemp() {
		arg = quoteLiteral(domain.CollectorTable)
	}
	for _, table := range tables {
		stmt := fmt.Sprintf("CREATE TRIGGER %s AFTER INSERT ON %s FOR EACH ROW EXECUTE PROCEDURE %s(%s)",
			quoteIdent(domain.TriggerName(table)), quoteIdent(table), routineName, arg)
		if err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating trigger on %s: %w", table, err)
		}
	}
	return nil
}

// DropTriggers looks up the table of each trigger, since trigger names
// longer than NAMEDATALEN are truncated and cannot be mapped back.
func (Dialect) DropTriggers(ctx context.Context, q port.Querier, triggers []string) error {
	for _, trigger := range triggers {
		tables, err := q.QueryStrings(ctx, queryTriggerTable, trigger)
		if err != nil {
			return fmt.Errorf("resolving table of trigger %s: %w", trigger, err)
		}
		for _, table := range tables {
			stmt := fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", quoteIdent(trigger), quoteIdent(table))
			if err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("dropping trigger %s: %w", trigger, err)
			}
		}
	}
	return nil
}

func (Dialect) MarkDirty(ctx context.Context, q port.Querier, tables []string) error {
	return q.Exec(ctx, fmt.Sprintf(stmtMarkDirty, domain.CollectorTable), tables)
}

// Truncate empties all tables in one statement, resetting their sequences.
func (Dialect) Truncate(ctx context.Context, q port.Querier, tables []string) error {
	return q.Exec(ctx, "TRUNCATE TABLE "+quoteIdentList(tables)+" RESTART IDENTITY CASCADE")
}

func (Dialect) DropTables(ctx context.Context, q port.Querier, tables []string) error {
	for _, table := range tables {
		if err := q.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)+" CASCADE"); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}
	return nil
}

func (Dialect) IsMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

// quoteIdent quotes a SQL identifier to prevent injection.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
