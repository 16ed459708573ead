// Package sqlite implements the SQLite dialect on modernc.org/sqlite.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"modernc.org/sqlite"
)

// Dialect implements port.Dialect for SQLite. In temporary mode both the
// collector and the triggers live in the temp schema, since triggers of the
// main schema cannot reference temp objects.
type Dialect struct{}

var _ port.Dialect = Dialect{}

func NewDialect() Dialect {
	return Dialect{}
}

func (Dialect) Name() string { return "sqlite" }

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

func (Dialect) CreateCollector(ctx context.Context, q port.Querier, mode domain.CollectorMode) error {
	return q.Exec(ctx, fmt.Sprintf(stmtCreateCollector, temp(mode), domain.CollectorTable))
}

func (Dialect) DropCollector(ctx context.Context, q port.Querier) error {
	return q.Exec(ctx, fmt.Sprintf(stmtDropCollector, domain.CollectorTable))
}

func (Dialect) CreateTriggers(ctx context.Context, q port.Querier, tables []string, mode domain.CollectorMode) error {
	for _, table := range tables {
		values := "(" + quoteLiteral(table) + ")"
		if !mode.IsTemp() {
			values += ", (" + quoteLiteral(domain.CollectorTable) + ")"
		}
		stmt := fmt.Sprintf(stmtCreateTrigger, temp(mode),
			quoteIdent(domain.TriggerName(table)), quoteIdent(table), domain.CollectorTable, values)
		if err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating trigger on %s: %w", table, err)
		}
	}
	return nil
}

func (Dialect) DropTriggers(ctx context.Context, q port.Querier, triggers []string) error {
	for _, trigger := range triggers {
		if err := q.Exec(ctx, "DROP TRIGGER IF EXISTS "+quoteIdent(trigger)); err != nil {
			return fmt.Errorf("dropping trigger %s: %w", trigger, err)
		}
	}
	return nil
}

func (Dialect) MarkDirty(ctx context.Context, q port.Querier, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %s (table_name) VALUES %s",
		domain.CollectorTable, strings.TrimSuffix(strings.Repeat("(?), ", len(tables)), ", "))
	return q.Exec(ctx, stmt, anySlice(tables)...)
}

// Truncate deletes every row and resets AUTOINCREMENT counters, which only
// exist once some table declared AUTOINCREMENT.
func (Dialect) Truncate(ctx context.Context, q port.Querier, tables []string) error {
	for _, table := range tables {
		if err := q.Exec(ctx, "DELETE FROM "+quoteIdent(table)); err != nil {
			return fmt.Errorf("emptying %s: %w", table, err)
		}
	}

	seq, err := q.QueryStrings(ctx, querySequenceTable)
	if err != nil {
		return fmt.Errorf("looking up sqlite_sequence: %w", err)
	}
	if len(seq) == 0 {
		return nil
	}

	stmt := "DELETE FROM sqlite_sequence WHERE name IN (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(tables)), ", ") + ")"
	return q.Exec(ctx, stmt, anySlice(tables)...)
}

// DropTables drops each table. SQLite has no CASCADE; dependents are left
// dangling, which is harmless with foreign keys disabled.
func (Dialect) DropTables(ctx context.Context, q port.Querier, tables []string) error {
	for _, table := range tables {
		if err := q.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}
	return nil
}

func (Dialect) IsMissingTable(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && strings.Contains(sqliteErr.Error(), "no such table")
}

func temp(mode domain.CollectorMode) string {
	if mode.IsTemp() {
		return "TEMP "
	}
	return ""
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
