package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/guillermoBallester/tablespy/internal/adapter/sqldb"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// Open connects using a go-sql-driver DSN such as
// "user:pass@tcp(localhost:3306)/app". cfg.Database fills in a DSN without
// a schema.
func Open(ctx context.Context, cfg port.ConnectionConfig) (*sqldb.Connection, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connection %q: parsing mysql dsn: %w", cfg.Name, err)
	}
	if mc.DBName == "" {
		mc.DBName = cfg.Database
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("connection %q: creating mysql connector: %w", cfg.Name, err)
	}
	return sqldb.Open(ctx, cfg, sql.OpenDB(connector), ToggleForeignKeys)
}

// ToggleForeignKeys turns foreign_key_checks off for the session and returns
// the statement restoring the previous value.
func ToggleForeignKeys(ctx context.Context, q port.Querier) (string, error) {
	current, err := q.QueryStrings(ctx, queryForeignKeyChecks)
	if err != nil {
		return "", err
	}
	previous := "1"
	if len(current) == 1 && current[0] == "0" {
		previous = "0"
	}
	if err := q.Exec(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return "", err
	}
	return "SET FOREIGN_KEY_CHECKS = " + previous, nil
}
