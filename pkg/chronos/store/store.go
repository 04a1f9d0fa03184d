// Package store defines the durable persistence contract for tasks and
// executions. Concrete backends live in subpackages (sqlite, postgres);
// the Scheduler only ever depends on this interface.
package store

import (
	"context"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// Store is the durable, transactional persistence layer the Scheduler
// consumes. Implementations must be safe for concurrent use.
type Store interface {
	CreateTask(ctx context.Context, task *chronos.ScheduledTask) error
	UpdateTask(ctx context.Context, task *chronos.ScheduledTask) error
	// DeleteTask removes the task and its executions transactionally and
	// reports whether the task previously existed.
	DeleteTask(ctx context.Context, id string) (bool, error)
	// GetTask returns (nil, nil) when the task does not exist.
	GetTask(ctx context.Context, id string) (*chronos.ScheduledTask, error)
	GetAllTasks(ctx context.Context) ([]*chronos.ScheduledTask, error)
	GetTasksByStatus(ctx context.Context, status chronos.TaskStatus) ([]*chronos.ScheduledTask, error)
	// GetActiveEventTasks scans active tasks via the status index and
	// filters to trigger.type='event' (and, if eventType is non-empty,
	// trigger.eventType==eventType) in memory.
	GetActiveEventTasks(ctx context.Context, eventType string) ([]*chronos.ScheduledTask, error)
	// GetUpcomingTasks returns active tasks with nextRunAt > now, sorted
	// ascending by nextRunAt, capped at limit.
	GetUpcomingTasks(ctx context.Context, limit int) ([]*chronos.ScheduledTask, error)
	GetFilteredTasks(ctx context.Context, filter chronos.TaskFilter) ([]*chronos.ScheduledTask, error)

	CreateExecution(ctx context.Context, exec *chronos.TaskExecution) error
	UpdateExecution(ctx context.Context, exec *chronos.TaskExecution) error
	// GetExecution returns (nil, nil) when the execution does not exist.
	GetExecution(ctx context.Context, id string) (*chronos.TaskExecution, error)
	// GetTaskExecutions paginates a task's executions newest first; when
	// beforeStartedAt is non-nil it is an exclusive cursor.
	GetTaskExecutions(ctx context.Context, taskID string, limit int, beforeStartedAt *time.Time) ([]*chronos.TaskExecution, error)
	GetRecentExecutions(ctx context.Context, limit int) ([]*chronos.TaskExecution, error)
	// CleanupOldExecutions range-deletes executions older than maxAgeDays
	// and returns the count removed.
	CleanupOldExecutions(ctx context.Context, maxAgeDays int) (int, error)
	GetStatistics(ctx context.Context) (chronos.Statistics, error)

	Close() error
}
