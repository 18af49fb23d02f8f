package compiler

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/pghatch/pghatch/internal/errs"
)

// validate parses sql as a defense-in-depth check that the builder
// never emitted a syntactically broken statement. It does not inspect
// the parsed tree beyond the parse succeeding — there is no lineage or
// rewriting use for it here, only a guard before the statement reaches
// the database.
func validate(sql string) error {
	if _, err := pg_query.ParseToJSON(sql); err != nil {
		return errs.Wrap(err, errs.Internal, "compiled statement failed parse validation")
	}
	return nil
}
