// Package postgres is the multi-instance Store backend: a PostgreSQL-backed
// implementation sharing the pkg/chronos/store/sqlite schema shape,
// connecting through pgx's stdlib driver via database/sql rather than the
// native pgx pool, and narrowed to the tasks/executions tables this
// module needs.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Backend wraps a PostgreSQL connection pool and implements store.Store.
// Unlike the sqlite backend, Postgres tolerates many concurrent writers, so
// multiple Chronos instances can share one database - the leader election
// layer, not the store, decides who acts on it.
type Backend struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to PostgreSQL and brings the schema up to date.
func Open(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	b := &Backend{db: db, logger: logger}
	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return b, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) currentVersion(ctx context.Context) (int, error) {
	var version int
	err := b.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, nil
	}
	return version, nil
}

func (b *Backend) migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`); err != nil {
		return err
	}

	version, err := b.currentVersion(ctx)
	if err != nil {
		return err
	}
	if version < 1 {
		if err := b.migrateV1(ctx); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	return nil
}

func (b *Backend) migrateV1(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			tags TEXT,
			type TEXT NOT NULL,
			trigger TEXT NOT NULL,
			payload TEXT,
			config TEXT NOT NULL,
			notification TEXT NOT NULL,
			status TEXT NOT NULL,
			last_run_at TIMESTAMPTZ,
			next_run_at TIMESTAMPTZ,
			run_count INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_next_run_at ON tasks(next_run_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_next_run_at ON tasks(status, next_run_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_type ON tasks(status, type)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			task_name TEXT NOT NULL,
			task_type TEXT NOT NULL,
			status TEXT NOT NULL,
			input TEXT,
			output TEXT,
			error TEXT,
			retry_attempt INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			duration_ms BIGINT,
			logs TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_task_id ON executions(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_task_started ON executions(task_id, started_at)`,
		`INSERT INTO schema_version (version) VALUES (1) ON CONFLICT DO NOTHING`,
	}
	for _, s := range stmts {
		if _, err := b.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
