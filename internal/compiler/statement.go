package compiler

import (
	"github.com/jackc/pgx/v5"
)

// RowDecoder turns the rows produced by a CompiledStatement into plain
// maps keyed by output column name, using pgx's own row-to-map
// collector rather than a hand-rolled scan loop.
type RowDecoder func(rows pgx.Rows) ([]map[string]any, error)

// DecodeRows is the default RowDecoder, used by every CompiledStatement
// this package produces.
func DecodeRows(rows pgx.Rows) ([]map[string]any, error) {
	return pgx.CollectRows(rows, pgx.RowToMap)
}

// CompiledStatement is a ready-to-execute parameterized statement.
// SQL never contains an interpolated literal; every value referenced
// by the original document appears in Args as $1, $2, ….
type CompiledStatement struct {
	SQL    string
	Args   []any
	Decode RowDecoder

	// CountSQL/CountArgs are set for compiled list queries: a second
	// statement, run in the same transaction, that returns the total
	// row count ignoring pagination. Implemented as a companion
	// statement rather than a window function, so the page query stays
	// a plain SELECT that plugs into any relation shape, composite
	// nested selects included.
	CountSQL  string
	CountArgs []any

	// Limit/Offset are the effective pagination window CompileQuery
	// resolved (defaults applied), echoed back so callers don't need
	// their own copy of the compiler's default-limit logic.
	Limit  int
	Offset int
}
