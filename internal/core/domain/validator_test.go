package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDDLValidator_AllowsManagedStatements(t *testing.T) {
	v := NewDDLValidator()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tablespy_dirty_tables (table_name VARCHAR(128) PRIMARY KEY)`,
		`CREATE TEMPORARY TABLE IF NOT EXISTS tablespy_dirty_tables (table_name VARCHAR(128) PRIMARY KEY)`,
		`CREATE TRIGGER "dirty_table_spy_countries" AFTER INSERT ON "countries" FOR EACH ROW EXECUTE PROCEDURE tablespy_mark_dirty()`,
		`DROP TRIGGER IF EXISTS "dirty_table_spy_countries" ON "countries"`,
		`TRUNCATE TABLE "countries", "cities" RESTART IDENTITY CASCADE`,
		`DROP TABLE IF EXISTS "countries" CASCADE`,
		`DELETE FROM tablespy_dirty_tables`,
		`SET CONSTRAINTS ALL DEFERRED`,
	}
	for _, s := range stmts {
		assert.NoError(t, v.Validate(s), s)
	}
}

func TestDDLValidator_Rejects(t *testing.T) {
	v := NewDDLValidator()

	tests := []struct {
		name string
		sql  string
		want error
	}{
		{"empty", "   ", ErrEmptyStatement},
		{"injected second statement", `DROP TABLE IF EXISTS "x" CASCADE; DROP DATABASE prod`, ErrMultiStatement},
		{"update", `UPDATE countries SET name = 'x'`, ErrNotAllowed},
		{"garbage", `CREATE TRIGGER ON`, ErrParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, v.Validate(tt.sql), tt.want)
		})
	}
}
