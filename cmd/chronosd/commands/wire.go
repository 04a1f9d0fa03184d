package commands

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jholhewres/chronos/pkg/chronos/config"
	"github.com/jholhewres/chronos/pkg/chronos/execbus"
	"github.com/jholhewres/chronos/pkg/chronos/leaderlock"
	"github.com/jholhewres/chronos/pkg/chronos/metrics"
	"github.com/jholhewres/chronos/pkg/chronos/notify"
	"github.com/jholhewres/chronos/pkg/chronos/store"
	"github.com/jholhewres/chronos/pkg/chronos/store/postgres"
	"github.com/jholhewres/chronos/pkg/chronos/store/sqlite"
)

// newLogger builds the daemon's *slog.Logger from the logging section of
// cfg: text or JSON handler, the configured minimum level, and - when
// cfg.File is set - a lumberjack-rotated file instead of stdout.
func newLogger(cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// openStore builds the Store backend named by cfg.Backend.
func openStore(cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return sqlite.Open(sqlite.Config{
			Path:        cfg.SQLite.Path,
			JournalMode: cfg.SQLite.JournalMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		}, logger)
	case "postgres":
		return postgres.Open(postgres.Config{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.Database,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openLeaderLock builds the leaderlock.Lock named by cfg.Strategy. "solo"
// is the single-instance default; the other strategies coordinate a fleet
// of chronosd instances sharing one store. The returned *redis.Client is
// non-nil only for the redis strategy, so callers can reuse the same
// connection for the execution-status bus instead of opening a second one.
func openLeaderLock(cfg config.LeaderConfig, logger *slog.Logger) (leaderlock.Lock, *redis.Client, error) {
	switch cfg.Strategy {
	case "", "solo":
		return leaderlock.NewSoloLock(), nil, nil
	case "sqlite":
		path := cfg.LockPath
		if path == "" {
			path = "./data/chronos.lock.db"
		}
		return leaderlock.NewSQLiteLock(path, logger), nil, nil
	case "heartbeat":
		db, err := sql.Open("sqlite3", cfg.LockPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open heartbeat lock database: %w", err)
		}
		hbStore, err := leaderlock.NewSQLHeartbeatStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("prepare heartbeat schema: %w", err)
		}
		return leaderlock.NewHeartbeatLock(hbStore, logger), nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return leaderlock.NewRedisLock(client, cfg.RedisKey, logger), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown leader strategy %q", cfg.Strategy)
	}
}

// buildExecBus returns an execbus.Bus matching the leader strategy: a
// Redis-backed bus sharing redisClient when the fleet already coordinates
// through Redis, or the in-process default otherwise.
func buildExecBus(redisClient *redis.Client, logger *slog.Logger) execbus.Bus {
	if redisClient == nil {
		return execbus.NewInProcessBus(logger)
	}
	return execbus.NewRedisBus(redisClient, "chronos:exec-status", logger)
}

// buildNotifier fans out task notifications to every sink configured: a
// structured-log sink always, plus Discord and/or webhook signing secret
// storage when their configs are non-empty.
func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) notify.Sink {
	multi := notify.NewMultiSink()
	multi.Add("log", notify.NewSlogSink(logger))

	if cfg.Webhook.SigningSecret != "" {
		if err := notify.StoreWebhookSigningSecret(cfg.Webhook.SigningSecret); err != nil {
			logger.Warn("failed to store webhook signing secret in keyring", "error", err)
		}
	}
	multi.Add("webhook", notify.NewWebhookSink(logger))

	if cfg.Discord.Token != "" && cfg.Discord.ChannelID != "" {
		discordSink, err := notify.NewDiscordSink(cfg.Discord.Token, cfg.Discord.ChannelID, logger)
		if err != nil {
			logger.Warn("failed to start discord notification sink", "error", err)
		} else {
			multi.Add("discord", discordSink)
		}
	}

	return multi
}

// buildMetricsRecorder returns a Prometheus-backed recorder when the HTTP
// listener is enabled (metrics have nowhere to be scraped from otherwise),
// and a no-op recorder when it is disabled.
func buildMetricsRecorder(cfg config.HTTPConfig) metrics.Recorder {
	if !cfg.Enabled {
		return metrics.NoopRecorder{}
	}
	return metrics.NewPromRecorder(nil)
}
