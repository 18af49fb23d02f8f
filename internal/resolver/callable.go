package resolver

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pghatch/pghatch/internal/catalog"
	"github.com/pghatch/pghatch/internal/compiler"
	"github.com/pghatch/pghatch/internal/envelope"
	"github.com/pghatch/pghatch/internal/errs"
)

// CallableResolver exposes one function/procedure as a POST endpoint.
type CallableResolver struct {
	Callable catalog.Callable
	compiler *compiler.Compiler
	pool     *pgxpool.Pool
}

func NewCallableResolver(fn catalog.Callable, c *compiler.Compiler, pool *pgxpool.Pool) *CallableResolver {
	return &CallableResolver{Callable: fn, compiler: c, pool: pool}
}

func (cr *CallableResolver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		envelope.WriteError(w, errs.New(errs.Validation, "method %s not supported on this endpoint", r.Method))
		return
	}

	args, err := envelope.DecodeCallArguments(r)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}

	stmt, err := cr.compiler.CompileCall(cr.Callable, args)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}

	rows, err := cr.exec(r.Context(), stmt)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}

	switch cr.Callable.ReturnShape {
	case catalog.ReturnVoid:
		envelope.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	case catalog.ReturnScalar:
		var result any
		if len(rows) > 0 {
			result = rows[0]["result"]
		}
		envelope.WriteJSON(w, http.StatusOK, map[string]any{"result": result})
	case catalog.ReturnComposite:
		var row map[string]any
		if len(rows) > 0 {
			row = rows[0]
		}
		envelope.WriteJSON(w, http.StatusOK, row)
	case catalog.ReturnSetOfComposite, catalog.ReturnTable:
		envelope.WriteJSON(w, http.StatusOK, map[string]any{"results": rows, "total": len(rows)})
	default:
		envelope.WriteJSON(w, http.StatusOK, map[string]any{"results": rows, "total": len(rows)})
	}
}

// exec runs the compiled call. Volatile callables always get their own
// transaction; stable/immutable callables may run outside one since
// they cannot mutate the database.
func (cr *CallableResolver) exec(ctx context.Context, stmt *compiler.CompiledStatement) ([]map[string]any, error) {
	if cr.Callable.Volatility != catalog.VolatilityVolatile {
		rows, err := cr.pool.Query(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return nil, errs.FromPgError(err)
		}
		results, err := stmt.Decode(rows)
		if err != nil {
			return nil, errs.Wrap(err, errs.Internal, "decode failed")
		}
		return results, nil
	}

	tx, err := cr.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errs.FromPgError(err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, errs.FromPgError(err)
	}
	results, err := stmt.Decode(rows)
	if err != nil {
		return nil, errs.Wrap(err, errs.Internal, "decode failed")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errs.FromPgError(err)
	}
	return results, nil
}
