package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
	"github.com/jholhewres/chronos/pkg/chronos/executor"
	"github.com/jholhewres/chronos/pkg/chronos/store/sqlite"
)

func newTestScheduler(t *testing.T, registry *executor.Registry) *Scheduler {
	t.Helper()
	backend, err := sqlite.Open(sqlite.Config{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	s := New(Config{Store: backend, Registry: registry})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize scheduler: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func baseTask(taskType string) *chronos.ScheduledTask {
	return &chronos.ScheduledTask{
		Name:    "test-task",
		Type:    taskType,
		Trigger: chronos.TaskTrigger{Type: chronos.TriggerOnce, RunAt: time.Now().Add(time.Hour)},
		Config:  chronos.DefaultTaskConfig(),
	}
}

// TestConcurrencyGateSkipsSecondRun exercises the non-concurrent gate: a
// second RunTaskNow issued while the first is still in flight must come
// back skipped rather than running alongside it.
func TestConcurrencyGateSkipsSecondRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	registry := executor.NewRegistry()
	registry.Register("slow", executor.ExecutorFunc(func(ctx context.Context, task *chronos.ScheduledTask, exec *chronos.TaskExecution) (executor.Result, error) {
		close(started)
		<-release
		return executor.Result{Success: true}, nil
	}))

	s := newTestScheduler(t, registry)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, baseTask("slow"))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var first *chronos.TaskExecution
	go func() {
		defer wg.Done()
		first, _ = s.RunTaskNow(ctx, task.ID)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started")
	}

	second, err := s.RunTaskNow(ctx, task.ID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Status != chronos.ExecutionSkipped {
		t.Errorf("second run status = %q, want %q", second.Status, chronos.ExecutionSkipped)
	}
	if len(second.Logs) == 0 || second.Logs[len(second.Logs)-1].Message != "Skipped: concurrent execution not allowed" {
		t.Errorf("unexpected skip log: %+v", second.Logs)
	}

	close(release)
	wg.Wait()
	if first == nil || first.Status != chronos.ExecutionCompleted {
		t.Errorf("first run did not complete successfully: %+v", first)
	}

	// A skipped execution still reaches the pipeline, so runCount must
	// cover both fires while only the completed one counts as a success.
	reloaded, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if reloaded.RunCount != 2 || reloaded.SuccessCount != 1 || reloaded.FailureCount != 0 {
		t.Errorf("stats = {run:%d success:%d failure:%d}, want {run:2 success:1 failure:0}",
			reloaded.RunCount, reloaded.SuccessCount, reloaded.FailureCount)
	}
}

// TestConcurrencyGateAllowsConcurrentWhenConfigured verifies AllowConcurrent
// lets two simultaneous runs of the same task both proceed.
func TestConcurrencyGateAllowsConcurrentWhenConfigured(t *testing.T) {
	var mu sync.Mutex
	running := 0
	maxRunning := 0
	release := make(chan struct{})

	registry := executor.NewRegistry()
	registry.Register("concurrent", executor.ExecutorFunc(func(ctx context.Context, task *chronos.ScheduledTask, exec *chronos.TaskExecution) (executor.Result, error) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return executor.Result{Success: true}, nil
	}))

	s := newTestScheduler(t, registry)
	ctx := context.Background()

	input := baseTask("concurrent")
	input.Config.AllowConcurrent = true
	task, err := s.CreateTask(ctx, input)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RunTaskNow(ctx, task.ID)
		}()
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		got := maxRunning
		mu.Unlock()
		if got == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("concurrent executions never overlapped, maxRunning=%d", got)
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(release)
	wg.Wait()
}

// TestRetryWithBackoffExhaustsMaxRetries checks that a task configured for
// two retries runs exactly three times (the original attempt plus two
// retries) and ends on a failed execution once retries are exhausted.
func TestRetryWithBackoffExhaustsMaxRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	registry := executor.NewRegistry()
	registry.Register("always-fails", executor.ExecutorFunc(func(ctx context.Context, task *chronos.ScheduledTask, exec *chronos.TaskExecution) (executor.Result, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return executor.Result{Success: false, Error: "boom"}, nil
	}))

	s := newTestScheduler(t, registry)
	ctx := context.Background()

	input := baseTask("always-fails")
	input.Config.MaxRetries = 2
	input.Config.RetryDelay = 5 * time.Millisecond
	input.Config.MaxRetryDelay = 20 * time.Millisecond
	task, err := s.CreateTask(ctx, input)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	first, err := s.RunTaskNow(ctx, task.ID)
	if err != nil {
		t.Fatalf("run task: %v", err)
	}
	if first.Status != chronos.ExecutionFailed {
		t.Errorf("first attempt status = %q, want failed", first.Status)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		got := attempts
		mu.Unlock()
		if got >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d attempts ran, want 3 (1 original + 2 retries)", got)
		case <-time.After(10 * time.Millisecond):
		}
	}

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	final := attempts
	mu.Unlock()
	if final != 3 {
		t.Errorf("attempts = %d, want exactly 3 (retries must stop once exhausted)", final)
	}
}

// TestTriggerDependentsAbortsOnCycle verifies the depVisited reentrancy
// guard: entering the chain for an id already in flight returns
// immediately instead of recursing.
func TestTriggerDependentsAbortsOnCycle(t *testing.T) {
	registry := executor.NewRegistry()
	s := newTestScheduler(t, registry)

	s.depMu.Lock()
	s.depVisited["task-a"] = struct{}{}
	s.depMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.triggerDependents(context.Background(), "task-a")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("triggerDependents did not return promptly on a cycle")
	}

	s.depMu.Lock()
	_, stillPresent := s.depVisited["task-a"]
	s.depMu.Unlock()
	if !stillPresent {
		t.Error("the manually-seeded visited entry should be left untouched by the aborted call")
	}
}

// TestTriggerDependentsFiresSatisfiedDependent builds a two-task chain
// (B depends on A) and checks that completing A runs B once B's only
// dependency, A, has a completed execution recorded.
func TestTriggerDependentsFiresSatisfiedDependent(t *testing.T) {
	fired := make(chan struct{}, 1)

	registry := executor.NewRegistry()
	registry.Register("downstream", executor.ExecutorFunc(func(ctx context.Context, task *chronos.ScheduledTask, exec *chronos.TaskExecution) (executor.Result, error) {
		select {
		case fired <- struct{}{}:
		default:
		}
		return executor.Result{Success: true}, nil
	}))

	s := newTestScheduler(t, registry)
	ctx := context.Background()

	upstream := baseTask("noop")
	upstream.Status = chronos.StatusPaused
	upstream, err := s.CreateTask(ctx, upstream)
	if err != nil {
		t.Fatalf("create upstream task: %v", err)
	}

	downstream := &chronos.ScheduledTask{
		Name:    "downstream",
		Type:    "downstream",
		Trigger: chronos.TaskTrigger{Type: chronos.TriggerEvent, EventType: "noop:completed", DependsOn: []string{upstream.ID}},
		Config:  chronos.DefaultTaskConfig(),
	}
	if _, err := s.CreateTask(ctx, downstream); err != nil {
		t.Fatalf("create downstream task: %v", err)
	}

	completed := &chronos.TaskExecution{
		ID:        newID(),
		TaskID:    upstream.ID,
		Status:    chronos.ExecutionCompleted,
		StartedAt: time.Now(),
	}
	if err := s.store.CreateExecution(ctx, completed); err != nil {
		t.Fatalf("seed upstream completion: %v", err)
	}

	s.triggerDependents(ctx, upstream.ID)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("downstream task never fired once its dependency was satisfied")
	}
}

// TestImportMergeSemantics covers merge-mode import: a task already
// present by id is skipped, a new task is imported, and a malformed task
// is reported as an error, without either aborting the other two.
func TestImportMergeSemantics(t *testing.T) {
	registry := executor.NewRegistry()
	s := newTestScheduler(t, registry)
	ctx := context.Background()

	existing, err := s.CreateTask(ctx, baseTask("noop"))
	if err != nil {
		t.Fatalf("create existing task: %v", err)
	}

	envelope := &chronos.ExportEnvelope{
		Version: exportEnvelopeVersion,
		Tasks: []chronos.ScheduledTask{
			*existing,
			{
				ID:      "new-task",
				Name:    "fresh",
				Type:    "noop",
				Trigger: chronos.TaskTrigger{Type: chronos.TriggerOnce, RunAt: time.Now().Add(time.Hour)},
				Config:  chronos.DefaultTaskConfig(),
			},
			{ID: "broken"},
		},
	}

	result := s.ImportTasks(ctx, envelope, chronos.ImportMerge)
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %d, want 1: %v", len(result.Errors), result.Errors)
	}
}

// TestExportTasksRoundTrip checks that exporting a subset of ids returns
// exactly those tasks, in the version-1 envelope shape.
func TestExportTasksRoundTrip(t *testing.T) {
	registry := executor.NewRegistry()
	s := newTestScheduler(t, registry)
	ctx := context.Background()

	a, err := s.CreateTask(ctx, baseTask("noop"))
	if err != nil {
		t.Fatalf("create task a: %v", err)
	}
	if _, err := s.CreateTask(ctx, baseTask("noop")); err != nil {
		t.Fatalf("create task b: %v", err)
	}

	envelope, err := s.ExportTasks(ctx, []string{a.ID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if envelope.Version != exportEnvelopeVersion {
		t.Errorf("Version = %d, want %d", envelope.Version, exportEnvelopeVersion)
	}
	if len(envelope.Tasks) != 1 || envelope.Tasks[0].ID != a.ID {
		t.Errorf("unexpected exported tasks: %+v", envelope.Tasks)
	}
}

// TestTaskLifecycle exercises create, pause, resume, and delete end to end
// against a real store.
func TestTaskLifecycle(t *testing.T) {
	registry := executor.NewRegistry()
	s := newTestScheduler(t, registry)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, baseTask("noop"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != chronos.StatusActive {
		t.Errorf("new task status = %q, want active", task.Status)
	}

	if err := s.PauseTask(ctx, task.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused, err := s.store.GetTask(ctx, task.ID)
	if err != nil || paused.Status != chronos.StatusPaused {
		t.Fatalf("task not paused: %+v, err=%v", paused, err)
	}

	if err := s.ResumeTask(ctx, task.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	resumed, err := s.store.GetTask(ctx, task.ID)
	if err != nil || resumed.Status != chronos.StatusActive {
		t.Fatalf("task not resumed: %+v, err=%v", resumed, err)
	}

	if err := s.ResumeTask(ctx, task.ID); err == nil {
		t.Error("resuming an already-active task should fail")
	}

	existed, err := s.DeleteTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Error("delete should report the task existed")
	}
	if gone, _ := s.store.GetTask(ctx, task.ID); gone != nil {
		t.Error("task should be gone after delete")
	}
}
