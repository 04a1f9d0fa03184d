package scheduler

import (
	"context"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// TaskPatch carries the optional fields UpdateTask may change; a nil field
// leaves the stored task's value untouched. This gives "apply only the
// fields the caller set" semantics without a reflection-based or JSON
// merge-patch layer.
type TaskPatch struct {
	Name        *string
	Description *string
	Tags        *[]string
	Type        *string
	Trigger     *chronos.TaskTrigger
	Payload     *map[string]any
	Config      *chronos.TaskConfig
	Notify      *chronos.NotificationConfig
	Status      *chronos.TaskStatus
}

// CreateTask assigns a fresh id and timestamps, merges config defaults,
// computes nextRunAt, persists, and - if the task is active and this
// instance is leader - schedules it.
func (s *Scheduler) CreateTask(ctx context.Context, input *chronos.ScheduledTask) (*chronos.ScheduledTask, error) {
	task := input.Clone()
	if task.ID == "" {
		task.ID = newID()
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = chronos.StatusActive
	}
	mergeConfigDefaults(&task.Config)
	task.NextRunAt = computeNextRun(task, now)

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, chronos.NewError(chronos.ErrDB, "create task", err)
	}

	if task.Status == chronos.StatusActive {
		s.scheduleOne(task)
	}
	return task, nil
}

func mergeConfigDefaults(cfg *chronos.TaskConfig) {
	defaults := chronos.DefaultTaskConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
}

// UpdateTask loads the task, applies every non-nil patch field, recomputes
// nextRunAt if the trigger changed, persists, cancels any existing timer,
// and reschedules if still active.
func (s *Scheduler) UpdateTask(ctx context.Context, id string, patch TaskPatch) (*chronos.ScheduledTask, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, chronos.NewError(chronos.ErrDB, "load task", err)
	}
	if task == nil {
		return nil, chronos.NewError(chronos.ErrTaskNotFound, id, nil)
	}

	triggerChanged := false
	if patch.Name != nil {
		task.Name = *patch.Name
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Tags != nil {
		task.Tags = *patch.Tags
	}
	if patch.Type != nil {
		task.Type = *patch.Type
	}
	if patch.Trigger != nil {
		task.Trigger = *patch.Trigger
		triggerChanged = true
	}
	if patch.Payload != nil {
		task.Payload = *patch.Payload
	}
	if patch.Config != nil {
		task.Config = *patch.Config
	}
	if patch.Notify != nil {
		task.Notify = *patch.Notify
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}

	now := time.Now()
	task.UpdatedAt = now
	if triggerChanged {
		task.NextRunAt = computeNextRun(task, now)
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, chronos.NewError(chronos.ErrDB, "update task", err)
	}

	s.cancelOne(task.ID)
	if task.Status == chronos.StatusActive {
		s.scheduleOne(task)
	}
	return task, nil
}

// DeleteTask cancels the task's timer before the store delete so a stale
// fire can never race a deleted id.
func (s *Scheduler) DeleteTask(ctx context.Context, id string) (bool, error) {
	s.cancelOne(id)
	existed, err := s.store.DeleteTask(ctx, id)
	if err != nil {
		return false, chronos.NewError(chronos.ErrDB, "delete task", err)
	}
	return existed, nil
}

// PauseTask moves an active task to paused and cancels its timer.
func (s *Scheduler) PauseTask(ctx context.Context, id string) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "load task", err)
	}
	if task == nil {
		return chronos.NewError(chronos.ErrTaskNotFound, id, nil)
	}

	task.Status = chronos.StatusPaused
	task.UpdatedAt = time.Now()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return chronos.NewError(chronos.ErrDB, "update task", err)
	}
	s.cancelOne(id)
	return nil
}

// ResumeTask moves a paused task back to active, recomputing nextRunAt and
// rescheduling it. Only valid from paused.
func (s *Scheduler) ResumeTask(ctx context.Context, id string) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "load task", err)
	}
	if task == nil {
		return chronos.NewError(chronos.ErrTaskNotFound, id, nil)
	}
	if task.Status != chronos.StatusPaused {
		return chronos.NewError(chronos.ErrUnknown, "task is not paused", nil)
	}

	now := time.Now()
	task.Status = chronos.StatusActive
	task.UpdatedAt = now
	task.NextRunAt = computeNextRun(task, now)
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return chronos.NewError(chronos.ErrDB, "update task", err)
	}
	s.scheduleOne(task)
	return nil
}

// RunTaskNow fires task immediately, obeying config.AllowConcurrent exactly
// as a scheduled fire would: a manual run never bypasses the concurrency
// gate.
func (s *Scheduler) RunTaskNow(ctx context.Context, id string) (*chronos.TaskExecution, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, chronos.NewError(chronos.ErrDB, "load task", err)
	}
	if task == nil {
		return nil, chronos.NewError(chronos.ErrTaskNotFound, id, nil)
	}
	return s.execute(ctx, task, 0), nil
}
