package scheduler

import (
	"context"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// triggerDependents runs on a task's successful completion: it scans
// active event-triggered tasks that depend on it and fires every
// candidate whose full dependency list is satisfied. The depVisited set
// guards against cycles in the dependency graph: entering the chain for
// completedTaskID while it is already present aborts that branch instead
// of recursing forever.
func (s *Scheduler) triggerDependents(ctx context.Context, completedTaskID string) {
	s.depMu.Lock()
	if _, inChain := s.depVisited[completedTaskID]; inChain {
		s.depMu.Unlock()
		s.logger.Warn("dependency cycle detected; aborting chain", "task", completedTaskID)
		return
	}
	s.depVisited[completedTaskID] = struct{}{}
	s.depMu.Unlock()
	defer func() {
		s.depMu.Lock()
		delete(s.depVisited, completedTaskID)
		s.depMu.Unlock()
	}()

	candidates, err := s.store.GetActiveEventTasks(ctx, "")
	if err != nil {
		s.logger.Error("dependency scan: load active event tasks failed", "error", err)
		return
	}

	for _, candidate := range candidates {
		if !dependsOnTask(candidate, completedTaskID) {
			continue
		}
		if s.allDependenciesSatisfied(ctx, candidate) {
			s.execute(ctx, candidate, 0)
		}
	}
}

func dependsOnTask(task *chronos.ScheduledTask, taskID string) bool {
	for _, id := range task.Trigger.DependsOn {
		if id == taskID {
			return true
		}
	}
	return false
}

// allDependenciesSatisfied reports whether every task named in
// candidate.Trigger.DependsOn has a most-recent execution that completed
// successfully.
func (s *Scheduler) allDependenciesSatisfied(ctx context.Context, candidate *chronos.ScheduledTask) bool {
	for _, depID := range candidate.Trigger.DependsOn {
		execs, err := s.store.GetTaskExecutions(ctx, depID, 1, nil)
		if err != nil || len(execs) == 0 || execs[0].Status != chronos.ExecutionCompleted {
			return false
		}
	}
	return true
}

// TriggerEventTask is wired as the EventBus's TriggerFunc during New, so
// eventbus.Bus.Emit ends up here regardless of whether the event
// originated from an external caller or from this Scheduler's own
// completion emission.
func (s *Scheduler) TriggerEventTask(ctx context.Context, eventType, eventSource string, data map[string]any) {
	tasks, err := s.store.GetActiveEventTasks(ctx, eventType)
	if err != nil {
		s.logger.Error("trigger event task: load active event tasks failed", "eventType", eventType, "error", err)
		return
	}

	for _, task := range tasks {
		if task.Trigger.EventSource != "" && task.Trigger.EventSource != eventSource {
			continue
		}
		s.runEventTask(ctx, task, eventType, eventSource, data)
	}
}

// runEventTask builds the merged payload (the task's configured payload
// plus the triggering event's type/source/data) and runs the pipeline on
// a shallow copy, recovering from any panic so one bad event task never
// stops the fan-out to the rest.
func (s *Scheduler) runEventTask(ctx context.Context, task *chronos.ScheduledTask, eventType, eventSource string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event task execution panicked", "task", task.ID, "panic", r)
		}
	}()

	merged := task.Clone()
	if merged.Payload == nil {
		merged.Payload = make(map[string]any)
	}
	merged.Payload["event"] = map[string]any{
		"type":   eventType,
		"source": eventSource,
		"data":   data,
	}
	s.execute(ctx, merged, 0)
}
