// Package eventbus is a named in-process event surface: Emit publishes a
// {type, data, source} event which is routed to whatever TriggerFunc the
// owner has wired in, typically a scheduler's event-triggered task scan.
package eventbus

import (
	"context"
	"log/slog"
)

// TriggerFunc is satisfied by scheduler.Scheduler.TriggerEventTask; the
// bus depends on the narrow function type rather than the scheduler
// package to avoid an import cycle (scheduler imports eventbus to emit
// task-completion events back onto the same bus).
type TriggerFunc func(ctx context.Context, eventType, eventSource string, data map[string]any)

// Bus fans events out to a single registered trigger handler. The core
// never needs more than one subscriber (the Scheduler itself); external
// consumers observe effects through ExecutionBus or NotificationSink
// instead.
type Bus struct {
	logger  *slog.Logger
	trigger TriggerFunc
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// SetTrigger wires the Scheduler's event-task trigger. Called once by
// scheduler.New.
func (b *Bus) SetTrigger(fn TriggerFunc) {
	b.trigger = fn
}

// Emit publishes a named event. source identifies what produced it (a
// task type for task-completion events, or an external caller's own
// identifier for ad hoc events).
func (b *Bus) Emit(ctx context.Context, eventType string, data map[string]any, source string) {
	if b.trigger == nil {
		b.logger.Debug("event emitted with no trigger installed", "type", eventType)
		return
	}
	b.trigger(ctx, eventType, source, data)
}
