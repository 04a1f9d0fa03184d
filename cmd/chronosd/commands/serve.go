package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jholhewres/chronos/pkg/chronos/config"
	"github.com/jholhewres/chronos/pkg/chronos/executor"
	"github.com/jholhewres/chronos/pkg/chronos/hooks"
	"github.com/jholhewres/chronos/pkg/chronos/scheduler"
)

// newServeCmd creates the `chronosd serve` command: it loads the daemon
// config, wires every collaborator, and runs the scheduler until an OS
// signal arrives.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon",
		Long: `Start chronosd as a long-running daemon: elects leadership,
arms timers for every active task, and serves health/metrics over HTTP.

Examples:
  chronosd serve
  chronosd serve --config ./chronos.yaml`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger := newLogger(cfg.Logging, verbose)

	backend, err := openStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	leader, redisClient, err := openLeaderLock(cfg.Leader, logger)
	if err != nil {
		return fmt.Errorf("build leader lock: %w", err)
	}

	// ── Register executors ──
	registry := executor.NewRegistry()
	pluginRegistry := executor.NewPluginRegistry()
	registry.Register(executor.PluginTaskType, executor.NewPluginExecutor(pluginRegistry))

	sched := scheduler.New(scheduler.Config{
		Store:    backend,
		Registry: registry,
		Hooks:    hooks.NewRegistry(logger),
		Notifier: buildNotifier(cfg.Notify, logger),
		ExecBus:  buildExecBus(redisClient, logger),
		Leader:   leader,
		Metrics:  buildMetricsRecorder(cfg.HTTP),
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}

	var httpServer *http.Server
	if cfg.HTTP.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		httpServer = &http.Server{Addr: cfg.HTTP.Address, Handler: mux}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health/metrics server stopped unexpectedly", "error", err)
			}
		}()
		logger.Info("health/metrics server running", "address", cfg.HTTP.Address)
	}

	logger.Info("chronosd running, press Ctrl+C to stop", "store", cfg.Store.Backend, "leader_strategy", cfg.Leader.Strategy)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping")

	done := make(chan struct{})
	go func() {
		sched.Stop()
		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = httpServer.Shutdown(shutdownCtx)
			cancel()
		}
		_ = backend.Close()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out, forcing exit")
	}

	return nil
}

// resolveConfig loads the config named by --config, falling back to the
// first discovered default location, and finally to DefaultConfig when
// neither resolves to a real file.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFromFile(path)
}
