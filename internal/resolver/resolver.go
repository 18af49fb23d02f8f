// Package resolver turns one catalog object (relation or callable)
// into the HTTP operations the Router mounts for it, translating each
// request into a compiled statement, executing it inside the right
// transaction shape, and shaping the JSON response.
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

// RelationResolver exposes list/create/update/delete for one relation.
type RelationResolver struct {
	Relation catalog.Relation
	compiler *compiler.Compiler
	pool     *pgxpool.Pool
}

// NewRelationResolver builds the resolver for one relation against the
// given compiler (closed over the published SchemaModel).
func NewRelationResolver(rel catalog.Relation, c *compiler.Compiler, pool *pgxpool.Pool) *RelationResolver {
	return &RelationResolver{Relation: rel, compiler: c, pool: pool}
}

// ServeHTTP dispatches by method per the gateway's fixed method table.
func (rr *RelationResolver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		rr.handleGet(w, r, ctx)
	case http.MethodPost:
		rr.handlePost(w, r, ctx)
	case http.MethodPut:
		rr.handlePut(w, r, ctx)
	case http.MethodDelete:
		rr.handleDelete(w, r, ctx)
	default:
		envelope.WriteError(w, errs.New(errs.Validation, "method %s not supported on this endpoint", r.Method))
	}
}

func (rr *RelationResolver) handleGet(w http.ResponseWriter, r *http.Request, ctx context.Context) {
	doc, err := docFromQueryString(r)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	rr.runList(w, ctx, doc)
}

func (rr *RelationResolver) handlePost(w http.ResponseWriter, r *http.Request, ctx context.Context) {
	isUpdate, doc, update, err := envelope.DecodePostBody(r)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	if isUpdate {
		rr.runUpdate(w, ctx, update)
		return
	}
	rr.runList(w, ctx, doc)
}

func (rr *RelationResolver) handlePut(w http.ResponseWriter, r *http.Request, ctx context.Context) {
	req, err := envelope.DecodeCreateRequest(r)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	stmt, err := rr.compiler.CompileInsert(rr.Relation, req)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	rows, err := rr.execReturning(ctx, stmt)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	if len(req.Data) == 1 && len(rows) == 1 {
		envelope.WriteJSON(w, http.StatusCreated, rows[0])
		return
	}
	envelope.WriteJSON(w, http.StatusCreated, envelope.ListResponse{
		Results: rows,
		Total:   int64(len(rows)),
		Pagination: envelope.PaginationOut{
			Limit: len(rows), Offset: 0,
		},
	})
}

func (rr *RelationResolver) handleDelete(w http.ResponseWriter, r *http.Request, ctx context.Context) {
	req, err := envelope.DecodePrimaryKeyRequest(r)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	stmt, err := rr.compiler.CompileDelete(rr.Relation, req)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	rows, err := rr.execReturning(ctx, stmt)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	if len(rows) == 0 {
		envelope.WriteError(w, errs.New(errs.NotFound, "row not found"))
		return
	}
	envelope.WriteJSON(w, http.StatusOK, envelope.DeleteResponse{Deleted: len(rows)})
}

func (rr *RelationResolver) runUpdate(w http.ResponseWriter, ctx context.Context, req compiler.UpdateRequest) {
	stmt, err := rr.compiler.CompileUpdate(rr.Relation, req)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	rows, err := rr.execReturning(ctx, stmt)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	if len(rows) == 0 {
		envelope.WriteError(w, errs.New(errs.NotFound, "row not found"))
		return
	}
	// A key-based update matches exactly the primary key or one unique
	// constraint, so it can only ever touch a single row — the response
	// is the row object itself, not a list envelope.
	envelope.WriteJSON(w, http.StatusOK, rows[0])
}

func (rr *RelationResolver) runList(w http.ResponseWriter, ctx context.Context, doc compiler.FilterDocument) {
	offset, err := envelope.ResolveCursor(doc.Pagination)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	if doc.Pagination == nil {
		doc.Pagination = &compiler.Pagination{}
	}
	doc.Pagination.Offset = offset

	stmt, err := rr.compiler.CompileQuery(rr.Relation, doc)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}

	tx, err := rr.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		envelope.WriteError(w, errs.FromPgError(err))
		return
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		envelope.WriteError(w, errs.FromPgError(err))
		return
	}
	results, err := stmt.Decode(rows)
	if err != nil {
		envelope.WriteError(w, errs.Wrap(err, errs.Internal, "decode failed"))
		return
	}

	var total int64
	if err := tx.QueryRow(ctx, stmt.CountSQL, stmt.CountArgs...).Scan(&total); err != nil {
		envelope.WriteError(w, errs.FromPgError(err))
		return
	}

	if err := tx.Commit(ctx); err != nil {
		envelope.WriteError(w, errs.FromPgError(err))
		return
	}

	envelope.WriteJSON(w, http.StatusOK, envelope.ListResponse{
		Results: results,
		Total:   total,
		Pagination: envelope.PaginationOut{
			Limit:      stmt.Limit,
			Offset:     stmt.Offset,
			NextCursor: envelope.EncodeCursor(stmt.Offset, stmt.Limit, total),
		},
	})
}

// execReturning runs a mutating CompiledStatement inside its own
// read-write transaction, rolling back on any application error.
func (rr *RelationResolver) execReturning(ctx context.Context, stmt *compiler.CompiledStatement) ([]map[string]any, error) {
	tx, err := rr.pool.BeginTx(ctx, pgx.TxOptions{})
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
