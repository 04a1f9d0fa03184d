package scheduler

import (
	"context"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// sweepLoop runs the missed-task sweep once a minute until Stop cancels
// the scheduler's context.
func (s *Scheduler) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(s.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

// NotifyVisible runs an out-of-cadence sweep immediately. Callers embedding
// Chronos in a client application invoke this on every transition of
// process visibility from hidden to visible, so a long-suspended process
// doesn't wait out the full minute-cadence before catching up.
func (s *Scheduler) NotifyVisible() {
	if s.ctx == nil {
		return
	}
	go s.sweepOnce(s.ctx)
}

// sweepOnce is the missed-task catch-up pass. Only the leader sweeps.
// Every active task with a past-due nextRunAt is either fired immediately
// (recent misses with runMissedOnStartup) or rescheduled from now.
func (s *Scheduler) sweepOnce(ctx context.Context) {
	if !s.isLeaderNow() {
		return
	}

	tasks, err := s.store.GetTasksByStatus(ctx, chronos.StatusActive)
	if err != nil {
		s.logger.Error("missed-task sweep: load active tasks failed", "error", err)
		return
	}

	now := time.Now()
	s.metrics.SetActiveTasks(len(tasks))

	for _, task := range tasks {
		if task.NextRunAt == nil || !task.NextRunAt.Before(now) {
			continue
		}

		overdue := now.Sub(*task.NextRunAt)
		if overdue < longHorizon && task.Config.RunMissedOnStartup {
			s.execute(ctx, task, 0)
			continue
		}

		next := computeNextRun(task, now)
		task.NextRunAt = next
		if task.Trigger.Type == chronos.TriggerOnce && next == nil {
			task.Status = chronos.StatusExpired
		}
		if err := s.store.UpdateTask(ctx, task); err != nil {
			s.logger.Error("missed-task sweep: reschedule failed", "task", task.ID, "error", err)
			continue
		}
		if task.Status == chronos.StatusActive {
			s.scheduleOne(task)
		}
	}
}

// retentionLoop runs one immediate cleanup pass on Initialize, then a 24h
// cadence. Failures are logged and never affect the scheduler.
func (s *Scheduler) retentionLoop() {
	defer s.wg.Done()

	s.runRetention(s.ctx)

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runRetention(s.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runRetention(ctx context.Context) {
	removed, err := s.store.CleanupOldExecutions(ctx, retentionMaxAgeDay)
	if err != nil {
		s.logger.Error("retention cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("retention cleanup removed old executions", "count", removed)
	}
}
