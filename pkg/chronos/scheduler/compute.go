package scheduler

import (
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
	"github.com/jholhewres/chronos/pkg/chronos/cronexpr"
)

// computeNextRun is a pure function: given a task and the current instant,
// it returns the next instant the task's trigger should fire, or nil if
// none can be determined.
func computeNextRun(task *chronos.ScheduledTask, now time.Time) *time.Time {
	switch task.Trigger.Type {
	case chronos.TriggerCron:
		expr, err := cronexpr.Parse(task.Trigger.Expression)
		if err != nil {
			return nil
		}
		next, ok := expr.Next(now, task.Trigger.Timezone)
		if !ok {
			return nil
		}
		return &next

	case chronos.TriggerInterval:
		if task.Trigger.IntervalMs <= 0 {
			return nil
		}
		interval := time.Duration(task.Trigger.IntervalMs) * time.Millisecond
		base := task.CreatedAt
		if task.LastRunAt != nil {
			base = *task.LastRunAt
		}
		next := base.Add(interval)
		if !next.After(now) {
			next = now.Add(interval)
		}
		return &next

	case chronos.TriggerOnce:
		if task.Trigger.RunAt.After(now) {
			runAt := task.Trigger.RunAt
			return &runAt
		}
		return nil

	case chronos.TriggerEvent:
		return nil

	default:
		return nil
	}
}
