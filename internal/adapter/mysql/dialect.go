// Package mysql implements the MySQL and MariaDB dialect on
// github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// errNoSuchTable is ER_NO_SUCH_TABLE.
const errNoSuchTable = 1146

// Dialect implements port.Dialect for MySQL. Triggers are schema objects in
// both modes; in temporary mode their target resolves to the session's
// temporary collector.
//
// TRUNCATE, CREATE TRIGGER and DROP TRIGGER all commit implicitly, so the
// surrounding transaction does not make them atomic. Tables emptied before a
// failure stay empty, and a failed trigger recreation leaves the triggers
// created up to that point in place.
type Dialect struct{}

var _ port.Dialect = Dialect{}

func NewDialect() Dialect {
	return Dialect{}
}

func (Dialect) Name() string { return "mysql" }

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
	temporary := ""
	if mode.IsTemp() {
		temporary = "TEMPORARY "
	}
	return q.Exec(ctx, fmt.Sprintf(stmtCreateCollector, temporary, domain.CollectorTable))
}

func (Dialect) DropCollector(ctx context.Context, q port.Querier) error {
	return q.Exec(ctx, fmt.Sprintf(stmtDropCollector, domain.CollectorTable))
}

const maxIdentifier = 64

// CreateTriggers installs one trigger per table. MySQL limits trigger names
// to 64 characters, so tables with names longer than 48 cannot be tracked.
func (Dialect) CreateTriggers(ctx context.Context, q port.Querier, tables []string, mode domain.CollectorMode) error {
	for _, table := range tables {
		if name := domain.TriggerName(table); len(name) > maxIdentifier {
			return fmt.Errorf("table %s: trigger name %s exceeds %d characters", table, name, maxIdentifier)
		}
		values := "(" + quoteLiteral(table) + ")"
		if !mode.IsTemp() {
			values += ", (" + quoteLiteral(domain.CollectorTable) + ")"
		}
		stmt := fmt.Sprintf(stmtCreateTrigger,
			quoteIdent(domain.TriggerName(table)), quoteIdent(table), quoteIdent(domain.CollectorTable), values)
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
	stmt := fmt.Sprintf("INSERT IGNORE INTO %s (table_name) VALUES %s",
		quoteIdent(domain.CollectorTable), strings.TrimSuffix(strings.Repeat("(?), ", len(tables)), ", "))
	return q.Exec(ctx, stmt, anySlice(tables)...)
}

func (Dialect) Truncate(ctx context.Context, q port.Querier, tables []string) error {
	for _, table := range tables {
		if err := q.Exec(ctx, "TRUNCATE TABLE "+quoteIdent(table)); err != nil {
			return fmt.Errorf("truncating %s: %w", table, err)
		}
	}
	return nil
}

func (Dialect) DropTables(ctx context.Context, q port.Querier, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = quoteIdent(t)
	}
	return q.Exec(ctx, "DROP TABLE IF EXISTS "+strings.Join(quoted, ", "))
}

func (Dialect) IsMissingTable(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errNoSuchTable
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
