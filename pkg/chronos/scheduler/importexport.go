package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// exportEnvelopeVersion is the only envelope version this Scheduler can
// produce or consume.
const exportEnvelopeVersion = 1

// ExportTasks returns the requested tasks (or every task, if ids is empty)
// wrapped in the version-1 envelope. Execution history is never included.
func (s *Scheduler) ExportTasks(ctx context.Context, ids []string) (*chronos.ExportEnvelope, error) {
	var tasks []*chronos.ScheduledTask

	if len(ids) == 0 {
		all, err := s.store.GetAllTasks(ctx)
		if err != nil {
			return nil, chronos.NewError(chronos.ErrDB, "load tasks for export", err)
		}
		tasks = all
	} else {
		for _, id := range ids {
			task, err := s.store.GetTask(ctx, id)
			if err != nil {
				return nil, chronos.NewError(chronos.ErrDB, "load task for export", err)
			}
			if task != nil {
				tasks = append(tasks, task)
			}
		}
	}

	envelope := &chronos.ExportEnvelope{
		Version:    exportEnvelopeVersion,
		ExportedAt: time.Now(),
		Tasks:      make([]chronos.ScheduledTask, 0, len(tasks)),
	}
	for _, task := range tasks {
		envelope.Tasks = append(envelope.Tasks, *task)
	}
	return envelope, nil
}

// ImportTasks never throws for per-task problems - every failure is
// collected into the returned ImportResult instead.
func (s *Scheduler) ImportTasks(ctx context.Context, data *chronos.ExportEnvelope, mode chronos.ImportMode) *chronos.ImportResult {
	result := &chronos.ImportResult{}

	if data == nil || data.Version != exportEnvelopeVersion {
		result.Errors = append(result.Errors, fmt.Sprintf("unsupported envelope version %d", envelopeVersionOf(data)))
		return result
	}

	if mode == chronos.ImportReplace {
		s.replaceAllTasks(ctx, result)
	}

	existing := make(map[string]bool)
	if mode == chronos.ImportMerge {
		all, err := s.store.GetAllTasks(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("load existing tasks: %v", err))
		}
		for _, t := range all {
			existing[t.ID] = true
		}
	}

	for i := range data.Tasks {
		incoming := data.Tasks[i]
		if incoming.Name == "" || incoming.Type == "" || incoming.Trigger.Type == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("task %q: missing required fields", incoming.ID))
			continue
		}
		if mode == chronos.ImportMerge && existing[incoming.ID] {
			result.Skipped++
			continue
		}

		task := resetImportedTask(&incoming)
		if err := s.store.CreateTask(ctx, task); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %q: %v", task.ID, err))
			continue
		}
		if task.Status == chronos.StatusActive {
			s.scheduleOne(task)
		}
		result.Imported++
	}

	return result
}

func envelopeVersionOf(data *chronos.ExportEnvelope) int {
	if data == nil {
		return 0
	}
	return data.Version
}

// replaceAllTasks deletes every existing task (and its timer) ahead of a
// replace-mode import.
func (s *Scheduler) replaceAllTasks(ctx context.Context, result *chronos.ImportResult) {
	all, err := s.store.GetAllTasks(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("load existing tasks for replace: %v", err))
		return
	}
	for _, t := range all {
		if _, err := s.DeleteTask(ctx, t.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete task %q: %v", t.ID, err))
		}
	}
}

// resetImportedTask clears the runtime state an imported task must not
// carry over: counters zeroed, lastRunAt/lastError cleared, status forced
// active, nextRunAt recomputed; createdAt preserved, updatedAt=now.
func resetImportedTask(incoming *chronos.ScheduledTask) *chronos.ScheduledTask {
	task := incoming.Clone()
	now := time.Now()

	task.Status = chronos.StatusActive
	task.LastRunAt = nil
	task.LastError = nil
	task.RunCount = 0
	task.SuccessCount = 0
	task.FailureCount = 0
	task.UpdatedAt = now
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.NextRunAt = computeNextRun(task, now)
	return task
}
