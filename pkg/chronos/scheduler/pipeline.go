package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
	"github.com/jholhewres/chronos/pkg/chronos/execbus"
)

// structuredEventTypes is the hard-coded set of task types whose successful
// completion emits "<type>:completed" rather than "custom". The asymmetry
// is intentional: these task types have a stable, structured completion
// shape worth a dedicated event name, unlike arbitrary plugin tasks.
var structuredEventTypes = map[string]bool{
	"workflow": true,
	"agent":    true,
	"backup":   true,
	"sync":     true,
}

// execute runs the full pipeline for one (task, retryAttempt) pair,
// persists and broadcasts every observable transition along the way, and
// returns the resulting TaskExecution (which may be skipped).
func (s *Scheduler) execute(ctx context.Context, task *chronos.ScheduledTask, retryAttempt int) *chronos.TaskExecution {
	execID := newID()

	if skippedExec := s.reserveOrSkip(ctx, task, execID, retryAttempt); skippedExec != nil {
		return skippedExec
	}

	startedAt := time.Now()
	exec := &chronos.TaskExecution{
		ID:           execID,
		TaskID:       task.ID,
		TaskName:     task.Name,
		TaskType:     task.Type,
		Status:       chronos.ExecutionRunning,
		Input:        task.Payload,
		RetryAttempt: retryAttempt,
		StartedAt:    startedAt,
	}
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		s.logger.Error("create execution failed", "task", task.ID, "error", err)
	}
	s.publishExec(ctx, exec)
	if task.Notify.OnStart {
		s.notifier.Notify(task, exec, chronos.EventStart)
	}
	s.hooks.DispatchStart(task.ID, exec.ID)

	result, execErr := s.runExecutor(ctx, task, exec)

	now := time.Now()
	exec.CompletedAt = &now
	duration := now.Sub(startedAt)
	exec.Duration = &duration

	success := s.applyOutcome(exec, result, execErr)
	// Pick up counters persisted while this execution ran (e.g. by a
	// concurrent skipped fire) so the stats update doesn't overwrite them.
	if fresh, err := s.store.GetTask(ctx, task.ID); err == nil && fresh != nil {
		task.RunCount, task.SuccessCount, task.FailureCount = fresh.RunCount, fresh.SuccessCount, fresh.FailureCount
	}
	s.updateTaskStats(task, startedAt, now, success, exec.Error)
	s.dispatchOutcome(task, exec, success)
	if success {
		s.emitCompletionEvent(ctx, task, exec)
	}
	s.maybeRetry(task, exec, retryAttempt, success)

	s.finalize(ctx, task, exec, success, now)
	return exec
}

// reserveOrSkip is the concurrency gate: if an execution for task.ID is
// already running and concurrency isn't allowed, it records and returns a
// skipped execution. Otherwise it reserves execID in the running set and
// returns nil.
func (s *Scheduler) reserveOrSkip(ctx context.Context, task *chronos.ScheduledTask, execID string, retryAttempt int) *chronos.TaskExecution {
	s.runningMu.Lock()
	if set := s.running[task.ID]; len(set) > 0 && !task.Config.AllowConcurrent {
		s.runningMu.Unlock()

		now := time.Now()
		zero := time.Duration(0)
		exec := &chronos.TaskExecution{
			ID:           execID,
			TaskID:       task.ID,
			TaskName:     task.Name,
			TaskType:     task.Type,
			Status:       chronos.ExecutionSkipped,
			Input:        task.Payload,
			RetryAttempt: retryAttempt,
			StartedAt:    now,
			CompletedAt:  &now,
			Duration:     &zero,
		}
		exec.AppendLog(newID(), now, chronos.LogWarn, "Skipped: concurrent execution not allowed", nil)
		if err := s.store.CreateExecution(ctx, exec); err != nil {
			s.logger.Error("create skipped execution failed", "task", task.ID, "error", err)
		}
		s.publishExec(ctx, exec)
		s.metrics.ObserveExecution(chronos.ExecutionSkipped, 0)

		// A skip still reaches the pipeline, so it still counts as a run -
		// only success/failure are left untouched.
		task.RunCount++
		task.LastRunAt = &now
		task.UpdatedAt = now
		if err := s.store.UpdateTask(ctx, task); err != nil {
			s.logger.Error("update task stats failed", "task", task.ID, "error", err)
		}
		return exec
	}

	if s.running[task.ID] == nil {
		s.running[task.ID] = make(map[string]struct{})
	}
	s.running[task.ID][execID] = struct{}{}
	s.runningMu.Unlock()
	return nil
}

func (s *Scheduler) releaseRunning(taskID, execID string) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	delete(s.running[taskID], execID)
	if len(s.running[taskID]) == 0 {
		delete(s.running, taskID)
	}
}

// runExecutor resolves task.Type in the registry and races it against
// task.Config.Timeout.
func (s *Scheduler) runExecutor(ctx context.Context, task *chronos.ScheduledTask, exec *chronos.TaskExecution) (result execResult, execErr error) {
	exe, ok := s.registry.Get(task.Type)
	if !ok {
		return execResult{}, chronos.NewError(chronos.ErrExecutorNotFound, "task type "+task.Type, nil)
	}

	timeout := task.Config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res execResult
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: chronos.NewError(chronos.ErrExecutionFailed, fmt.Sprintf("panic: %v", r), nil)}
			}
		}()
		res, err := exe.Execute(execCtx, task.Clone(), exec)
		ch <- outcome{res: execResult{Success: res.Success, Output: res.Output, Error: res.Error}, err: err}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-execCtx.Done():
		return execResult{}, chronos.NewError(chronos.ErrExecutionTimeout, "execution timed out", execCtx.Err())
	}
}

// execResult mirrors executor.Result locally so this file doesn't need to
// import the executor package just for a value type already re-exported
// through Registry.Get's return value.
type execResult struct {
	Success bool
	Output  map[string]any
	Error   string
}

// applyOutcome maps the executor result onto exec and returns whether the
// execution succeeded.
func (s *Scheduler) applyOutcome(exec *chronos.TaskExecution, result execResult, execErr error) bool {
	switch {
	case execErr != nil:
		msg := execErr.Error()
		exec.Error = &msg
		exec.Status = chronos.ExecutionFailed
		return false
	case !result.Success:
		msg := result.Error
		if msg == "" {
			msg = "execution reported failure"
		}
		exec.Error = &msg
		exec.Status = chronos.ExecutionFailed
		return false
	default:
		exec.Output = result.Output
		exec.Status = chronos.ExecutionCompleted
		return true
	}
}

// updateTaskStats applies the outcome of one execution to task's running
// counters in place.
func (s *Scheduler) updateTaskStats(task *chronos.ScheduledTask, startedAt, now time.Time, success bool, execErr *string) {
	task.RunCount++
	started := startedAt
	task.LastRunAt = &started
	task.UpdatedAt = now
	if success {
		task.SuccessCount++
		task.LastError = nil
		return
	}
	task.FailureCount++
	if execErr != nil {
		msg := *execErr
		task.LastError = &msg
	}
}

// dispatchOutcome fires the notification and lifecycle-hook callbacks for
// one execution's outcome.
func (s *Scheduler) dispatchOutcome(task *chronos.ScheduledTask, exec *chronos.TaskExecution, success bool) {
	if success {
		if task.Notify.OnComplete {
			s.notifier.Notify(task, exec, chronos.EventComplete)
		}
		s.hooks.DispatchComplete(task.ID, exec.ID, exec.Output)
		return
	}
	if task.Notify.OnError {
		s.notifier.Notify(task, exec, chronos.EventError)
	}
	var cause error
	if exec.Error != nil {
		cause = errors.New(*exec.Error)
	} else {
		cause = chronos.NewError(chronos.ErrExecutionFailed, "unknown failure", nil)
	}
	s.hooks.DispatchError(task.ID, exec.ID, cause)
}

// emitCompletionEvent publishes a task-completed event onto the event bus
// so event-triggered dependents can react.
func (s *Scheduler) emitCompletionEvent(ctx context.Context, task *chronos.ScheduledTask, exec *chronos.TaskExecution) {
	payload := map[string]any{
		"taskId":      task.ID,
		"taskName":    task.Name,
		"executionId": exec.ID,
		"output":      exec.Output,
	}
	if structuredEventTypes[task.Type] {
		s.eventBus.Emit(ctx, task.Type+":completed", payload, task.Type)
		return
	}
	s.eventBus.Emit(ctx, "custom", payload, task.Type)
}

// maybeRetry schedules a follow-up attempt with exponential backoff plus
// jitter, bounded by maxRetryDelay.
func (s *Scheduler) maybeRetry(task *chronos.ScheduledTask, exec *chronos.TaskExecution, retryAttempt int, success bool) {
	if success || retryAttempt >= task.Config.MaxRetries {
		return
	}
	delay := retryBackoff(task.Config, retryAttempt)
	exec.AppendLog(newID(), time.Now(), chronos.LogInfo,
		fmt.Sprintf("retrying attempt %d after %s", retryAttempt+1, delay), nil)

	next := task.Clone()
	nextAttempt := retryAttempt + 1
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-time.After(delay):
			s.execute(s.ctx, next, nextAttempt)
		case <-s.ctx.Done():
		}
	}()
}

// retryBackoff computes
// delay = min(retryDelay*2^attempt + random*0.25*retryDelay, maxRetryDelay).
func retryBackoff(cfg chronos.TaskConfig, attempt int) time.Duration {
	base := cfg.RetryDelay
	if base <= 0 {
		base = 30 * time.Second
	}
	maxDelay := cfg.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}

	backoff := base * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Float64() * 0.25 * float64(base))
	delay := backoff + jitter
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// finalize releases the concurrency slot, persists the final execution and
// task state, reschedules (or expires a spent once-task), and broadcasts
// the transition.
func (s *Scheduler) finalize(ctx context.Context, task *chronos.ScheduledTask, exec *chronos.TaskExecution, success bool, now time.Time) {
	s.releaseRunning(task.ID, exec.ID)

	if err := s.store.UpdateExecution(ctx, exec); err != nil {
		s.logger.Error("update execution failed", "execution", exec.ID, "error", err)
	}
	s.publishExec(ctx, exec)
	if exec.Duration != nil {
		s.metrics.ObserveExecution(exec.Status, exec.Duration.Seconds())
	}

	next := computeNextRun(task, now)
	task.NextRunAt = next
	if task.Trigger.Type == chronos.TriggerOnce && next == nil {
		task.Status = chronos.StatusExpired
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		s.logger.Error("update task stats failed", "task", task.ID, "error", err)
	}

	if task.Status == chronos.StatusActive {
		s.scheduleOne(task)
	} else {
		s.cancelOne(task.ID)
	}

	if success {
		s.triggerDependents(ctx, task.ID)
	}
}

func (s *Scheduler) publishExec(ctx context.Context, exec *chronos.TaskExecution) {
	if s.execBus == nil {
		return
	}
	s.execBus.Publish(ctx, execbus.ExecutionStatusEvent{
		TaskID:      exec.TaskID,
		ExecutionID: exec.ID,
		Status:      exec.Status,
		TaskName:    exec.TaskName,
		Duration:    exec.Duration,
		Error:       exec.Error,
	})
}
