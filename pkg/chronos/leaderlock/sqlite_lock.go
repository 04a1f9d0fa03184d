package leaderlock

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLock holds an exclusive lock for the instance's lifetime via a
// long-running BEGIN IMMEDIATE transaction against a single dedicated
// connection, independent of the Store's own connection pool so the two
// never contend for SQLite's one-writer-at-a-time slot. Losing instances
// block on BEGIN IMMEDIATE until the leader's transaction ends (Stop, or
// process exit tearing down the connection), at which point SQLite hands
// the lock to the next waiter, giving release-on-process-exit semantics
// for free.
type SQLiteLock struct {
	path   string
	logger *slog.Logger
	subs   *subscriberSet

	mu     sync.Mutex
	db     *sql.DB
	tx     *sql.Tx
	cancel context.CancelFunc
}

func NewSQLiteLock(path string, logger *slog.Logger) *SQLiteLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteLock{path: path, logger: logger, subs: newSubscriberSet()}
}

func (l *SQLiteLock) Start(ctx context.Context) error {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=5000", l.path))
	if err != nil {
		return fmt.Errorf("open lock connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS leader_lock (id INTEGER PRIMARY KEY CHECK (id = 1))`); err != nil {
		db.Close()
		return fmt.Errorf("create lock table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO leader_lock (id) VALUES (1)`); err != nil {
		db.Close()
		return fmt.Errorf("seed lock row: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.db = db
	l.cancel = cancel
	l.mu.Unlock()

	go l.acquireLoop(loopCtx)
	return nil
}

// acquireLoop blocks on BEGIN IMMEDIATE (a single dedicated connection
// means SQLite queues us behind the current holder) and, once acquired,
// holds the transaction open until loopCtx is cancelled by Stop.
func (l *SQLiteLock) acquireLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.mu.Lock()
		db := l.db
		l.mu.Unlock()
		if db == nil {
			return
		}

		tx, err := db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("leader lock: begin failed, retrying", "error", err)
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE leader_lock SET id = id WHERE id = 1`); err != nil {
			tx.Rollback()
			if ctx.Err() != nil {
				return
			}
			continue
		}

		l.mu.Lock()
		l.tx = tx
		l.mu.Unlock()
		l.subs.set(true)

		<-ctx.Done()

		l.mu.Lock()
		if l.tx == tx {
			l.tx = nil
		}
		l.mu.Unlock()
		tx.Rollback()
		l.subs.set(false)
		return
	}
}

func (l *SQLiteLock) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	db := l.db
	l.cancel = nil
	l.db = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if db != nil {
		db.Close()
	}
}

func (l *SQLiteLock) IsLeader() bool {
	return l.subs.current()
}

func (l *SQLiteLock) Subscribe(fn func(bool)) func() {
	return l.subs.subscribe(fn)
}
