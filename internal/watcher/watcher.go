// Package watcher installs and listens for DDL change notifications,
// debouncing bursts of catalog activity into a single Router rebuild.
// The long-lived listener is a dedicated pgx connection running
// WaitForNotification in a loop; connection loss triggers exponential
// backoff reconnection, the pgx-native replacement for a raw TCP
// reconnect-sleep loop.
package watcher

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const channelName = "pghatch_watch_ddl"

// Watcher listens for DDL notifications on channelName and triggers
// Rebuild on the Router, directly or after a debounce window.
type Watcher struct {
	pool      *pgxpool.Pool
	rebuild   func(ctx context.Context) error
	debounce  time.Duration
	heartbeat time.Duration
	logger    *zap.Logger
}

func New(pool *pgxpool.Pool, rebuild func(ctx context.Context) error, debounce, heartbeat time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{pool: pool, rebuild: rebuild, debounce: debounce, heartbeat: heartbeat, logger: logger}
}

// Install idempotently creates the pghatch_watch schema objects: the
// notifying function and the two event triggers that invoke it.
func (w *Watcher) Install(ctx context.Context) error {
	_, err := w.pool.Exec(ctx, installSQL)
	return err
}

// Uninstall drops the pghatch_watch objects if present.
func (w *Watcher) Uninstall(ctx context.Context) error {
	_, err := w.pool.Exec(ctx, uninstallSQL)
	return err
}

// Run listens for notifications until ctx is cancelled, reconnecting
// with exponential backoff (base 250ms, cap 30s) on connection loss,
// and forces an unconditional rebuild after every reconnect.
func (w *Watcher) Run(ctx context.Context) {
	backoff := 250 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.listenOnce(ctx); err != nil {
			w.logger.Warn("DDL listener disconnected, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter(backoff)):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = 250 * time.Millisecond
	}
}

// listenOnce holds one dedicated connection open, debouncing bursts of
// notifications into single rebuilds, until the connection drops or
// the heartbeat detects it is dead.
func (w *Watcher) listenOnce(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		return err
	}

	if err := w.rebuild(ctx); err != nil {
		w.logger.Warn("unconditional rebuild after (re)connect failed", zap.Error(err))
	}

	notifications := make(chan struct{}, 1)
	errs := make(chan error, 1)
	go func() {
		for {
			if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
				errs <- err
				return
			}
			select {
			case notifications <- struct{}{}:
			default:
			}
		}
	}()

	heartbeat := time.NewTicker(w.heartbeat)
	defer heartbeat.Stop()

	var debounceTimer *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case <-notifications:
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(w.debounce)
				debounceC = debounceTimer.C
			} else {
				debounceTimer.Reset(w.debounce)
			}
		case <-debounceC:
			debounceTimer = nil
			debounceC = nil
			if err := w.rebuild(ctx); err != nil {
				w.logger.Warn("debounced rebuild failed", zap.Error(err))
			}
		case <-heartbeat.C:
			if _, err := conn.Exec(ctx, "SELECT 1"); err != nil {
				return err
			}
		}
	}
}

func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

const installSQL = `
CREATE SCHEMA IF NOT EXISTS pghatch_watch;

CREATE OR REPLACE FUNCTION pghatch_watch.notify_schema_change() RETURNS event_trigger AS $$
BEGIN
  PERFORM pg_notify('pghatch_watch_ddl', tg_tag);
END;
$$ LANGUAGE plpgsql;

DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_event_trigger WHERE evtname = 'pghatch_watch_ddl_end') THEN
    CREATE EVENT TRIGGER pghatch_watch_ddl_end ON ddl_command_end
      EXECUTE FUNCTION pghatch_watch.notify_schema_change();
  END IF;
  IF NOT EXISTS (SELECT 1 FROM pg_event_trigger WHERE evtname = 'pghatch_watch_sql_drop') THEN
    CREATE EVENT TRIGGER pghatch_watch_sql_drop ON sql_drop
      EXECUTE FUNCTION pghatch_watch.notify_schema_change();
  END IF;
END;
$$;
`

const uninstallSQL = `
DO $$
BEGIN
  IF EXISTS (SELECT 1 FROM pg_event_trigger WHERE evtname = 'pghatch_watch_ddl_end') THEN
    DROP EVENT TRIGGER pghatch_watch_ddl_end;
  END IF;
  IF EXISTS (SELECT 1 FROM pg_event_trigger WHERE evtname = 'pghatch_watch_sql_drop') THEN
    DROP EVENT TRIGGER pghatch_watch_sql_drop;
  END IF;
END;
$$;

DROP FUNCTION IF EXISTS pghatch_watch.notify_schema_change();
DROP SCHEMA IF EXISTS pghatch_watch;
`
