// Package sqlite is the default Store backend: zero-configuration,
// WAL-mode SQLite with its own connection setup and versioned migrator,
// narrowed to the tasks/executions schema this module needs.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Config holds SQLite-specific connection settings.
type Config struct {
	Path        string
	JournalMode string
	BusyTimeout int
}

// Backend wraps the SQLite connection and implements store.Store.
type Backend struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex // serializes schema-affecting operations only
}

// Open creates or opens a SQLite database at the configured path and
// brings its schema up to the latest version.
func Open(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "./data/chronos.db"
	}
	if cfg.JournalMode == "" {
		cfg.JournalMode = "WAL"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5000
	}

	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d&_foreign_keys=ON",
		cfg.Path, cfg.JournalMode, cfg.BusyTimeout)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.Path, err)
	}
	// SQLite allows only one writer at a time; capping database/sql's pool
	// at a single connection serializes access and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	b := &Backend{db: db, logger: logger}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return b, nil
}

// Close closes the underlying connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) currentVersion() (int, error) {
	var version int
	err := b.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// migrate brings the schema from whatever version it is at up to v2.
// v1: base tables plus single-column indices and the (status, nextRunAt)
// compound. v2: adds the (status, type) compound index used by the
// task-type filtered listing path.
func (b *Backend) migrate() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return err
	}

	version, err := b.currentVersion()
	if err != nil {
		return err
	}

	if version < 1 {
		if err := b.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		version = 1
	}
	if version < 2 {
		if err := b.migrateV2(); err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		version = 2
	}
	return nil
}

func (b *Backend) migrateV1() error {
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
			last_run_at DATETIME,
			next_run_at DATETIME,
			run_count INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_next_run_at ON tasks(next_run_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_next_run_at ON tasks(status, next_run_at)`,
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
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			duration_ms INTEGER,
			logs TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_task_id ON executions(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_task_started ON executions(task_id, started_at)`,
		`INSERT INTO schema_version (version) VALUES (1)`,
	}
	for _, s := range stmts {
		if _, err := b.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) migrateV2() error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_type ON tasks(status, type)`,
		`INSERT INTO schema_version (version) VALUES (2)`,
	}
	for _, s := range stmts {
		if _, err := b.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
