package notify

import (
	"log/slog"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// SlogSink is the always-available fallback sink: it just logs the
// notification at an appropriate level. Useful standalone and as a safety
// net alongside the webhook/Discord sinks.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Notify(task *chronos.ScheduledTask, execution *chronos.TaskExecution, event chronos.NotificationEvent) {
	attrs := []any{
		"task", task.Name,
		"taskId", task.ID,
		"executionId", execution.ID,
		"event", string(event),
	}
	switch event {
	case chronos.EventError:
		if execution.Error != nil {
			attrs = append(attrs, "error", *execution.Error)
		}
		s.logger.Error("task execution error", attrs...)
	case chronos.EventComplete:
		s.logger.Info("task execution complete", attrs...)
	default:
		s.logger.Info("task execution event", attrs...)
	}
}
