package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/guillermoBallester/tablespy/internal/adapter/sqldb"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// Open connects to the database file named by cfg.DSN. The file is opened
// read-write and never created, so a missing database is a connectivity
// error like on the server dialects. In-memory databases get a single
// session since each connection would see its own database.
func Open(ctx context.Context, cfg port.ConnectionConfig) (*sqldb.Connection, error) {
	dsn := DSN(cfg.DSN)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if isMemory(dsn) {
		sqldb.SingleSession(db)
	}
	return sqldb.Open(ctx, cfg, db, ToggleForeignKeys)
}

// DSN turns a plain path into a read-write URI filename with foreign keys
// enforced. URIs and in-memory names are returned unchanged.
func DSN(path string) string {
	if strings.HasPrefix(path, "file:") || isMemory(path) {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "mode=rw&_pragma=foreign_keys(1)"
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// ToggleForeignKeys turns foreign_keys off and returns the pragma that
// restores the previous value. It must run outside a transaction, where the
// pragma is a no-op.
func ToggleForeignKeys(ctx context.Context, q port.Querier) (string, error) {
	current, err := q.QueryStrings(ctx, "PRAGMA foreign_keys")
	if err != nil {
		return "", err
	}
	previous := "ON"
	if len(current) == 1 && current[0] == "0" {
		previous = "OFF"
	}
	if err := q.Exec(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return "", err
	}
	return "PRAGMA foreign_keys = " + previous, nil
}
