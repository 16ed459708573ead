package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmptyStatement = errors.New("empty statement")
	ErrNotAllowed     = errors.New("statement kind is not managed by the sniffer")
	ErrMultiStatement = errors.New("multiple statements are not allowed")
	ErrParseFailed    = errors.New("failed to parse SQL")
)

// DDLValidator checks generated Postgres statements with PostgreSQL's own
// parser before they reach the database. Table names are spliced into DDL,
// so a name that breaks out of its quoting shows up here as a second
// statement or an unexpected statement kind.
type DDLValidator struct{}

func NewDDLValidator() *DDLValidator {
	return &DDLValidator{}
}

// Validate accepts a single statement of a kind the sniffer emits.
func (v *DDLValidator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ErrEmptyStatement
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if len(tree.Stmts) == 0 {
		return ErrEmptyStatement
	}

	if len(tree.Stmts) > 1 {
		return ErrMultiStatement
	}

	stmt := tree.Stmts[0].Stmt
	if stmt == nil {
		return ErrEmptyStatement
	}

	switch stmt.Node.(type) {
	case *pg_query.Node_CreateStmt,
		*pg_query.Node_CreateTrigStmt,
		*pg_query.Node_CreateFunctionStmt,
		*pg_query.Node_DropStmt,
		*pg_query.Node_TruncateStmt,
		*pg_query.Node_InsertStmt,
		*pg_query.Node_DeleteStmt,
		*pg_query.Node_SelectStmt,
		*pg_query.Node_VariableSetStmt,
		*pg_query.Node_ConstraintsSetStmt:
		return nil
	default:
		return ErrNotAllowed
	}
}
