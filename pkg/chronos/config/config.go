// Package config is the daemon's configuration surface: a YAML file,
// overlaid with environment variables and .env files, that selects the
// store backend, the leader election strategy, logging, notification
// sinks, and the HTTP listen address for health and metrics.
package config

import "time"

// Config is the root of chronosd's configuration file.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
	Leader  LeaderConfig  `yaml:"leader"`
	HTTP    HTTPConfig    `yaml:"http"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// LoggingConfig selects slog's handler and minimum level.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // empty means stdout; rotated via lumberjack when set
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path        string `yaml:"path"`
	JournalMode string `yaml:"journal_mode"`
	BusyTimeout int    `yaml:"busy_timeout_ms"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LeaderConfig selects how one instance is elected the sole scheduler
// among a fleet sharing the same store.
type LeaderConfig struct {
	// Strategy is one of: solo, sqlite, heartbeat, redis.
	Strategy  string `yaml:"strategy"`
	LockPath  string `yaml:"lock_path"`  // sqlite and heartbeat strategies
	RedisAddr string `yaml:"redis_addr"` // redis strategy
	RedisKey  string `yaml:"redis_key"`
}

// HTTPConfig is the health-check and Prometheus metrics listener.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// NotifyConfig configures the notification sinks fanned out on task events.
type NotifyConfig struct {
	Webhook WebhookNotifyConfig `yaml:"webhook"`
	Discord DiscordNotifyConfig `yaml:"discord"`
}

type WebhookNotifyConfig struct {
	// SigningSecret, when set, is stored into the OS keyring on startup
	// rather than kept in memory alongside the rest of the config.
	SigningSecret string `yaml:"signing_secret"`
}

type DiscordNotifyConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// DefaultConfig returns the configuration chronosd runs with when no file
// is given: a local SQLite store, solo leadership, and text logging to
// stdout, sufficient for a single-instance deployment.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Backend: "sqlite",
			SQLite:  SQLiteConfig{Path: "./data/chronos.db", JournalMode: "WAL", BusyTimeout: 5000},
		},
		Leader: LeaderConfig{Strategy: "solo"},
		HTTP:   HTTPConfig{Enabled: true, Address: ":9090"},
	}
}
