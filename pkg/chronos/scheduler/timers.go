package scheduler

import (
	"sync"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// longHorizon is the point past which timers.go switches from a single
// long-lived timer to a poll-then-arm strategy, blunting drift and
// background throttling on long delays.
const longHorizon = 60 * time.Second

// taskTimer is the per-task handle tracked in Scheduler.timers. Cancel is
// safe to call more than once and from any goroutine.
type taskTimer struct {
	stop chan struct{}
	once sync.Once
}

func newTaskTimer() *taskTimer {
	return &taskTimer{stop: make(chan struct{})}
}

func (t *taskTimer) cancel() {
	t.once.Do(func() { close(t.stop) })
}

// scheduleOne (re)arms the timer for task, cancelling any prior handle for
// the same id first. Only the leader arms timers; a non-leader call is a
// no-op so that a follower instance never races the leader's own fire.
func (s *Scheduler) scheduleOne(task *chronos.ScheduledTask) {
	s.timersMu.Lock()
	if old, ok := s.timers[task.ID]; ok {
		old.cancel()
		delete(s.timers, task.ID)
	}
	if !s.isLeaderNow() || task.NextRunAt == nil {
		s.timersMu.Unlock()
		return
	}
	th := newTaskTimer()
	s.timers[task.ID] = th
	s.timersMu.Unlock()

	go s.runTimer(task.ID, *task.NextRunAt, th)
}

// cancelOne cancels task's timer, if any, without arming a replacement.
func (s *Scheduler) cancelOne(taskID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if th, ok := s.timers[taskID]; ok {
		th.cancel()
		delete(s.timers, taskID)
	}
}

func (s *Scheduler) cancelAllTimers() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for id, th := range s.timers {
		th.cancel()
		delete(s.timers, id)
	}
}

// runTimer is a drift-resistant wait: delays over 60s are polled in 60s
// increments (re-measuring the remaining delay each wake, which absorbs
// background throttling) until the remainder is small enough to arm a
// final single-shot wait.
func (s *Scheduler) runTimer(taskID string, fireAt time.Time, th *taskTimer) {
	for {
		remaining := time.Until(fireAt)
		if remaining <= 0 {
			s.clearTimerIfCurrent(taskID, th)
			s.fire(taskID)
			return
		}

		wait := remaining
		if wait > longHorizon {
			wait = longHorizon
		}

		select {
		case <-time.After(wait):
			continue
		case <-th.stop:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) clearTimerIfCurrent(taskID string, th *taskTimer) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if s.timers[taskID] == th {
		delete(s.timers, taskID)
	}
}

// fire loads the task's current record and runs it through the execution
// pipeline at retry attempt 0. Used by the timer path; the missed sweep
// calls execute directly.
func (s *Scheduler) fire(taskID string) {
	task, err := s.store.GetTask(s.ctx, taskID)
	if err != nil {
		s.logger.Error("fire: load task failed", "task", taskID, "error", err)
		return
	}
	if task == nil || task.Status != chronos.StatusActive {
		return
	}
	s.execute(s.ctx, task, 0)
}
