// Package app wires the gateway's components into a runnable process:
// open the pool, snapshot the catalog, mount resolvers, start the DDL
// watcher, serve HTTP, shut down on signal.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pghatch/pghatch/internal/catalog"
	"github.com/pghatch/pghatch/internal/config"
	"github.com/pghatch/pghatch/internal/router"
	"github.com/pghatch/pghatch/internal/watcher"
)

// Server owns every long-lived component of a running gateway process.
type Server struct {
	cfg        config.Config
	logger     *zap.Logger
	pool       *pgxpool.Pool
	router     *router.Router
	watcher    *watcher.Watcher
	httpServer *http.Server
}

// New builds the pool and every component, and runs the initial
// introspection + resolver-set build synchronously, so New returns
// either a fully mounted Server or the unrecoverable-init error that
// maps to exit code 1.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MinConns = cfg.PoolMinConns
	poolCfg.MaxConns = cfg.PoolMaxConns
	poolCfg.MaxConnLifetime = cfg.PoolMaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	introspector, err := catalog.New(pool, catalog.Options{
		Namespaces:      cfg.Namespaces,
		ExcludedObjects: cfg.ExcludedObjects,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	rt := router.New(pool, cfg.DefaultLimit, cfg.MaxLimit, cfg.RequestTimeout, logger, introspector.Introspect)
	if err := rt.Rebuild(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	w := watcher.New(pool, rt.Rebuild, cfg.WatcherDebounce, cfg.WatcherHeartbeat, logger)
	if err := w.Install(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		router:  rt,
		watcher: w,
		httpServer: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: rt.Handler(),
		},
	}, nil
}

// Run serves HTTP and watches for DDL changes until ctx is cancelled,
// then drains in-flight requests and closes the pool.
func (s *Server) Run(ctx context.Context) error {
	go s.watcher.Run(ctx)

	go s.periodicReconcile(ctx)

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.pool.Close()
	return err
}

// periodicReconcile forces a rebuild on the reconciliation timer
// (default every 60s), the fallback path for a missed DDL notification.
func (s *Server) periodicReconcile(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.router.Rebuild(ctx); err != nil {
				s.logger.Warn("periodic reconciliation rebuild failed", zap.Error(err))
			}
		}
	}
}
