// Package scheduler is the execution engine of Chronos: it owns per-task
// timers, runs the execution pipeline, keeps statistics, and wires together
// the Store, ExecutorRegistry, LeaderLock, ExecutionBus, EventBus,
// NotificationSink and LifecycleHooks collaborators behind a single
// lifecycle (Initialize/Stop).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jholhewres/chronos/pkg/chronos"
	"github.com/jholhewres/chronos/pkg/chronos/eventbus"
	"github.com/jholhewres/chronos/pkg/chronos/execbus"
	"github.com/jholhewres/chronos/pkg/chronos/executor"
	"github.com/jholhewres/chronos/pkg/chronos/hooks"
	"github.com/jholhewres/chronos/pkg/chronos/leaderlock"
	"github.com/jholhewres/chronos/pkg/chronos/metrics"
	"github.com/jholhewres/chronos/pkg/chronos/notify"
	"github.com/jholhewres/chronos/pkg/chronos/store"
)

const (
	sweepInterval      = time.Minute
	retentionInterval  = 24 * time.Hour
	retentionMaxAgeDay = 30
)

// Config collects the Scheduler's collaborators. Only Store and Registry
// are required; the rest default to inert implementations so a Scheduler
// can be built incrementally.
type Config struct {
	Store    store.Store
	Registry *executor.Registry
	Hooks    *hooks.Registry
	Notifier notify.Sink
	ExecBus  execbus.Bus
	EventBus *eventbus.Bus
	Leader   leaderlock.Lock
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// Scheduler is the durable task scheduler described in the package doc. It
// is safe for concurrent use; Initialize and Stop are both idempotent.
type Scheduler struct {
	store    store.Store
	registry *executor.Registry
	hooks    *hooks.Registry
	notifier notify.Sink
	execBus  execbus.Bus
	eventBus *eventbus.Bus
	leader   leaderlock.Lock
	metrics  metrics.Recorder
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	timersMu sync.Mutex
	timers   map[string]*taskTimer

	runningMu sync.Mutex
	running   map[string]map[string]struct{}

	depMu      sync.Mutex
	depVisited map[string]struct{}

	isLeaderFlag boolFlag
	unsubLeader  func()

	lifecycleMu sync.Mutex
	initialized bool
	wg          sync.WaitGroup
}

// boolFlag is a tiny atomic-ish boolean guarded by its own mutex, kept
// consistent with the plain-mutex style the rest of this package uses
// for its other shared state.
type boolFlag struct {
	mu sync.RWMutex
	v  bool
}

func (b *boolFlag) set(v bool) { b.mu.Lock(); b.v = v; b.mu.Unlock() }
func (b *boolFlag) get() bool  { b.mu.RLock(); defer b.mu.RUnlock(); return b.v }

// New builds a Scheduler from cfg, filling in inert defaults for every
// optional collaborator left unset.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	leader := cfg.Leader
	if leader == nil {
		leader = leaderlock.NewSoloLock()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewSlogSink(logger)
	}
	execBus := cfg.ExecBus
	if execBus == nil {
		execBus = execbus.NewInProcessBus(logger)
	}
	eb := cfg.EventBus
	if eb == nil {
		eb = eventbus.New(logger)
	}
	hookRegistry := cfg.Hooks
	if hookRegistry == nil {
		hookRegistry = hooks.NewRegistry(logger)
	}
	metricsRecorder := cfg.Metrics
	if metricsRecorder == nil {
		metricsRecorder = metrics.NoopRecorder{}
	}

	s := &Scheduler{
		store:      cfg.Store,
		registry:   cfg.Registry,
		hooks:      hookRegistry,
		notifier:   notifier,
		execBus:    execBus,
		eventBus:   eb,
		leader:     leader,
		metrics:    metricsRecorder,
		logger:     logger,
		timers:     make(map[string]*taskTimer),
		running:    make(map[string]map[string]struct{}),
		depVisited: make(map[string]struct{}),
	}
	eb.SetTrigger(s.TriggerEventTask)
	return s
}

// Initialize is idempotent: on first call it starts leader election,
// subscribes to leadership transitions, starts the missed-task sweep and
// retention timer, and - if already leader - schedules every active task.
func (s *Scheduler) Initialize(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.initialized {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.leader.Start(s.ctx); err != nil {
		return chronos.NewError(chronos.ErrInitFailed, "start leader election", err)
	}
	s.unsubLeader = s.leader.Subscribe(s.onLeadershipChange)

	s.wg.Add(2)
	go s.sweepLoop()
	go s.retentionLoop()

	s.initialized = true
	return nil
}

// Stop cancels every timer this instance owns, stops the periodic sweep
// and retention loop, releases the leader lock, closes the bus, and
// unsubscribes leadership callbacks. After Stop, Initialize may run again.
func (s *Scheduler) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if !s.initialized {
		return
	}

	s.cancelAllTimers()

	if s.unsubLeader != nil {
		s.unsubLeader()
		s.unsubLeader = nil
	}
	s.leader.Stop()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if err := s.execBus.Close(); err != nil {
		s.logger.Warn("execbus close failed", "error", err)
	}

	s.initialized = false
}

// onLeadershipChange is the leaderlock.Lock subscription callback: on gain,
// every active task is (re)scheduled; on loss, every timer this instance
// owns is cancelled.
func (s *Scheduler) onLeadershipChange(isLeader bool) {
	s.isLeaderFlag.set(isLeader)
	if !isLeader {
		s.cancelAllTimers()
		return
	}

	tasks, err := s.store.GetTasksByStatus(s.ctx, chronos.StatusActive)
	if err != nil {
		s.logger.Error("leadership gain: failed to load active tasks", "error", err)
		return
	}
	for _, task := range tasks {
		s.scheduleOne(task)
	}
	s.metrics.SetActiveTasks(len(tasks))
}

func (s *Scheduler) isLeaderNow() bool {
	return s.isLeaderFlag.get() || s.leader.IsLeader()
}

// newID mints a ULID: lexicographically sortable by creation time, and
// monotonic within the same millisecond. Used for task, execution and
// log-entry IDs; the stores page executions by started_at, not by ID.
func newID() string {
	return ulid.Make().String()
}
