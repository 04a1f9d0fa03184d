package scheduler

import (
	"testing"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

func TestComputeNextRunCronDelegatesToCronParser(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	task := &chronos.ScheduledTask{
		Trigger: chronos.TaskTrigger{Type: chronos.TriggerCron, Expression: "0 9 * * *"},
	}
	next := computeNextRun(task, now)
	if next == nil {
		t.Fatal("expected a next fire")
	}
	want := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestComputeNextRunIntervalFromLastRun(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	last := now.Add(-30 * time.Second)
	task := &chronos.ScheduledTask{
		Trigger:   chronos.TaskTrigger{Type: chronos.TriggerInterval, IntervalMs: 60_000},
		LastRunAt: &last,
	}
	next := computeNextRun(task, now)
	if next == nil {
		t.Fatal("expected a next fire")
	}
	want := last.Add(60 * time.Second)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestComputeNextRunIntervalCatchesUpWhenOverdue(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	last := now.Add(-5 * time.Minute)
	task := &chronos.ScheduledTask{
		Trigger:   chronos.TaskTrigger{Type: chronos.TriggerInterval, IntervalMs: 60_000},
		LastRunAt: &last,
	}
	next := computeNextRun(task, now)
	if next == nil {
		t.Fatal("expected a next fire")
	}
	want := now.Add(60 * time.Second)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v (now + interval, not the missed window)", next, want)
	}
}

func TestComputeNextRunOnceFutureAndPast(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	future := &chronos.ScheduledTask{Trigger: chronos.TaskTrigger{Type: chronos.TriggerOnce, RunAt: now.Add(time.Hour)}}
	if next := computeNextRun(future, now); next == nil {
		t.Error("expected a next fire for a future once-trigger")
	}

	past := &chronos.ScheduledTask{Trigger: chronos.TaskTrigger{Type: chronos.TriggerOnce, RunAt: now.Add(-time.Hour)}}
	if next := computeNextRun(past, now); next != nil {
		t.Error("expected nil for a once-trigger already in the past")
	}
}

func TestComputeNextRunEventIsUndefined(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	task := &chronos.ScheduledTask{Trigger: chronos.TaskTrigger{Type: chronos.TriggerEvent, EventType: "foo"}}
	if next := computeNextRun(task, now); next != nil {
		t.Error("expected nil nextRunAt for an event trigger")
	}
}

func TestRetryBackoffBound(t *testing.T) {
	cfg := chronos.TaskConfig{RetryDelay: time.Second, MaxRetryDelay: 10 * time.Second}
	for attempt := 0; attempt < 6; attempt++ {
		delay := retryBackoff(cfg, attempt)
		upper := time.Duration(float64(cfg.RetryDelay) * float64(int64(1)<<uint(attempt)) * 1.25)
		if upper > cfg.MaxRetryDelay {
			upper = cfg.MaxRetryDelay
		}
		if delay > upper {
			t.Errorf("attempt %d: delay %v exceeds bound %v", attempt, delay, upper)
		}
		if delay > cfg.MaxRetryDelay {
			t.Errorf("attempt %d: delay %v exceeds maxRetryDelay %v", attempt, delay, cfg.MaxRetryDelay)
		}
	}
}
