// Package router owns the connection pool and the currently published
// ResolverSet, mounting exactly two dynamic chi routes that dispatch
// through whichever ResolverSet is live — so hot-swap never touches
// the chi.Mux itself.
package router

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pghatch/pghatch/internal/catalog"
	"github.com/pghatch/pghatch/internal/compiler"
	"github.com/pghatch/pghatch/internal/envelope"
	"github.com/pghatch/pghatch/internal/errs"
	"github.com/pghatch/pghatch/internal/logutil"
	"github.com/pghatch/pghatch/internal/resolver"
	"github.com/pghatch/pghatch/internal/typeregistry"
)

// ResolverSet is one immutable generation of mounted handlers, built
// from a single SchemaModel snapshot.
type ResolverSet struct {
	Model     *catalog.SchemaModel
	relations map[string]*resolver.RelationResolver
	callables map[string]*resolver.CallableResolver
}

func buildResolverSet(model *catalog.SchemaModel, pool *pgxpool.Pool, defaultLimit, maxLimit int) *ResolverSet {
	types := typeregistry.New(model.Types)
	c := compiler.New(model, types, defaultLimit, maxLimit)

	rs := &ResolverSet{
		Model:     model,
		relations: make(map[string]*resolver.RelationResolver),
		callables: make(map[string]*resolver.CallableResolver),
	}
	for _, rel := range model.MountableRelations() {
		rs.relations[rel.QualifiedName()] = resolver.NewRelationResolver(rel, c, pool)
	}
	for _, fn := range model.Callables {
		if !fn.Privileges["execute"] {
			continue
		}
		rs.callables[fn.QualifiedName()] = resolver.NewCallableResolver(fn, c, pool)
	}
	return rs
}

// Router owns the pool, the rebuild mutex, and the atomically-published
// ResolverSet.
type Router struct {
	Pool *pgxpool.Pool

	defaultLimit, maxLimit int
	requestTimeout         time.Duration
	logger                 *zap.Logger

	current   atomic.Pointer[ResolverSet]
	rebuildMu sync.Mutex

	introspect func(ctx context.Context) (*catalog.SchemaModel, error)
}

// New builds a Router around an already-open pool. introspect is
// called on every rebuild to fetch a fresh SchemaModel.
func New(pool *pgxpool.Pool, defaultLimit, maxLimit int, requestTimeout time.Duration, logger *zap.Logger, introspect func(ctx context.Context) (*catalog.SchemaModel, error)) *Router {
	return &Router{
		Pool:           pool,
		defaultLimit:   defaultLimit,
		maxLimit:       maxLimit,
		requestTimeout: requestTimeout,
		logger:         logger,
		introspect:     introspect,
	}
}

// Rebuild runs the hot-swap protocol: introspect, build a new
// ResolverSet, publish atomically. Retains the previous ResolverSet on
// any failure.
func (rt *Router) Rebuild(ctx context.Context) error {
	rt.rebuildMu.Lock()
	defer rt.rebuildMu.Unlock()

	model, err := rt.introspect(ctx)
	if err != nil {
		rt.logger.Warn("schema rebuild failed, retaining previous generation", zap.Error(err))
		return err
	}

	if prev := rt.current.Load(); prev != nil && prev.Model.Checksum == model.Checksum {
		rt.logger.Debug("schema unchanged, skipping rebuild", zap.String("checksum", model.Checksum))
		return nil
	}

	rs := buildResolverSet(model, rt.Pool, rt.defaultLimit, rt.maxLimit)
	rt.current.Store(rs)
	rt.logger.Info("schema rebuilt", logutil.Values(
		zap.String("checksum", model.Checksum),
		zap.Int("relations", len(rs.relations)),
		zap.Int("callables", len(rs.callables))))
	return nil
}

// Handler returns the chi.Router mounting the two dynamic patterns,
// each request bounded by the configured request timeout.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(rt.loggingMiddleware)
	r.Handle("/{ns}/{obj}", http.HandlerFunc(rt.dispatch))
	r.Handle("/{ns}/{obj}/", http.HandlerFunc(rt.dispatch))

	if rt.requestTimeout <= 0 {
		return r
	}
	return http.TimeoutHandler(r, rt.requestTimeout, `{"error":{"kind":"unavailable","message":"request timed out"}}`)
}

func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request) {
	rs := rt.current.Load()
	if rs == nil {
		envelope.WriteError(w, errs.New(errs.Unavailable, "schema not yet loaded"))
		return
	}

	ns := chi.URLParam(r, "ns")
	obj := chi.URLParam(r, "obj")
	qname := fmt.Sprintf("%s.%s", ns, obj)

	if rel, ok := rs.relations[qname]; ok {
		rel.ServeHTTP(w, r)
		return
	}
	if fn, ok := rs.callables[qname]; ok {
		fn.ServeHTTP(w, r)
		return
	}
	envelope.WriteError(w, errs.New(errs.NotFound, "no endpoint mounted for %q", qname))
}
