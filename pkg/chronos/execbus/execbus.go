// Package execbus is a best-effort ExecutionStatusEvent broadcast: other
// instances use it to refresh live views. Loss is tolerable, so every
// implementation here drops events rather than blocking the pipeline that
// publishes them.
package execbus

import (
	"context"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// ExecutionStatusEvent is published on every createExecution/updateExecution
// performed by this instance.
type ExecutionStatusEvent struct {
	TaskID      string                  `json:"taskId"`
	ExecutionID string                  `json:"executionId"`
	Status      chronos.ExecutionStatus `json:"status"`
	TaskName    string                  `json:"taskName"`
	Duration    *time.Duration          `json:"duration,omitempty"`
	Error       *string                 `json:"error,omitempty"`
}

// Bus is the publish/subscribe surface the Scheduler and any peer-view
// consumers share. Subscribe returns an unsubscribe func.
type Bus interface {
	Publish(ctx context.Context, event ExecutionStatusEvent)
	Subscribe(fn func(ExecutionStatusEvent)) (unsubscribe func())
	Close() error
}
