// Package chronos defines the durable domain model shared by every Chronos
// component: the scheduled task, its trigger variants, its executions, and
// the closed set of errors the engine raises. Nothing in this package talks
// to a store, a clock, or a network; it is pure data plus the discriminator
// types other packages build behavior around.
package chronos

import "time"

// TaskStatus is the lifecycle state of a ScheduledTask. A task is exactly
// one of these at any time.
type TaskStatus string

const (
	StatusActive  TaskStatus = "active"
	StatusPaused  TaskStatus = "paused"
	StatusExpired TaskStatus = "expired"
)

// ExecutionStatus is the outcome (or in-flight state) of a TaskExecution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionSkipped   ExecutionStatus = "skipped"
)

// LogLevel classifies a single execution log line.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// NotificationEvent is the event kind passed to a NotificationSink.
type NotificationEvent string

const (
	EventStart    NotificationEvent = "start"
	EventProgress NotificationEvent = "progress"
	EventComplete NotificationEvent = "complete"
	EventError    NotificationEvent = "error"
)

// TriggerType discriminates the tagged TaskTrigger variant.
type TriggerType string

const (
	TriggerCron     TriggerType = "cron"
	TriggerInterval TriggerType = "interval"
	TriggerOnce     TriggerType = "once"
	TriggerEvent    TriggerType = "event"
)

// TaskTrigger is a tagged sum type: exactly one of the typed fields below is
// meaningful, selected by Type. This mirrors how the rest of the corpus
// encodes tagged variants for serialization (a discriminator field plus a
// union of optional payloads) rather than an interface hierarchy, since the
// whole trigger must round-trip through a single JSON blob column.
type TaskTrigger struct {
	Type TriggerType `json:"type"`

	// Cron fields.
	Expression string `json:"expression,omitempty"`
	Timezone   string `json:"timezone,omitempty"`

	// Interval fields.
	IntervalMs int64 `json:"intervalMs,omitempty"`

	// Once fields.
	RunAt time.Time `json:"runAt,omitempty"`

	// Event fields.
	EventType   string   `json:"eventType,omitempty"`
	EventSource string   `json:"eventSource,omitempty"`
	DependsOn   []string `json:"dependsOn,omitempty"`
}

// TaskConfig holds the execution policy for a ScheduledTask.
type TaskConfig struct {
	Timeout            time.Duration `json:"timeout"`
	MaxRetries         int           `json:"maxRetries"`
	RetryDelay         time.Duration `json:"retryDelay"`
	MaxRetryDelay      time.Duration `json:"maxRetryDelay,omitempty"`
	RunMissedOnStartup bool          `json:"runMissedOnStartup"`
	AllowConcurrent    bool          `json:"allowConcurrent"`
}

// DefaultTaskConfig returns the config applied when a task omits one.
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		Timeout:    5 * time.Minute,
		MaxRetries: 0,
		RetryDelay: 30 * time.Second,
	}
}

// NotificationConfig controls when and where the NotificationSink is called
// for a task's executions.
type NotificationConfig struct {
	OnStart    bool     `json:"onStart"`
	OnComplete bool     `json:"onComplete"`
	OnError    bool     `json:"onError"`
	Channels   []string `json:"channels,omitempty"`
	WebhookURL string   `json:"webhookUrl,omitempty"`
}

// ScheduledTask is the durable definition of something to run.
type ScheduledTask struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	Type    string              `json:"type"`
	Trigger TaskTrigger         `json:"trigger"`
	Payload map[string]any      `json:"payload,omitempty"`
	Config  TaskConfig          `json:"config"`
	Notify  NotificationConfig  `json:"notification"`

	Status TaskStatus `json:"status"`

	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`

	RunCount     int     `json:"runCount"`
	SuccessCount int     `json:"successCount"`
	FailureCount int     `json:"failureCount"`
	LastError    *string `json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep-enough copy safe for handing to an executor, which
// per the Executor contract must not mutate the task it receives.
func (t *ScheduledTask) Clone() *ScheduledTask {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Tags != nil {
		clone.Tags = append([]string(nil), t.Tags...)
	}
	if t.Payload != nil {
		clone.Payload = make(map[string]any, len(t.Payload))
		for k, v := range t.Payload {
			clone.Payload[k] = v
		}
	}
	if t.Trigger.DependsOn != nil {
		clone.Trigger.DependsOn = append([]string(nil), t.Trigger.DependsOn...)
	}
	if t.Notify.Channels != nil {
		clone.Notify.Channels = append([]string(nil), t.Notify.Channels...)
	}
	if t.LastRunAt != nil {
		v := *t.LastRunAt
		clone.LastRunAt = &v
	}
	if t.NextRunAt != nil {
		v := *t.NextRunAt
		clone.NextRunAt = &v
	}
	if t.LastError != nil {
		v := *t.LastError
		clone.LastError = &v
	}
	return &clone
}

// LogEntry is one line in a TaskExecution's log.
type LogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// TaskExecution is one firing of a task.
type TaskExecution struct {
	ID       string `json:"id"`
	TaskID   string `json:"taskId"`
	TaskName string `json:"taskName"`
	TaskType string `json:"taskType"`

	Status ExecutionStatus `json:"status"`

	Input  map[string]any `json:"input,omitempty"`
	Output map[string]any `json:"output,omitempty"`
	Error  *string        `json:"error,omitempty"`

	RetryAttempt int `json:"retryAttempt"`

	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Duration    *time.Duration `json:"duration,omitempty"`

	Logs []LogEntry `json:"logs,omitempty"`
}

// AppendLog appends a log entry with the given level and message.
func (e *TaskExecution) AppendLog(id string, now time.Time, level LogLevel, message string, data map[string]any) {
	e.Logs = append(e.Logs, LogEntry{
		ID:        id,
		Timestamp: now,
		Level:     level,
		Message:   message,
		Data:      data,
	})
}

// TaskFilter narrows GetFilteredTasks queries.
type TaskFilter struct {
	Statuses []TaskStatus
	Types    []string
	Tags     []string
	Search   string
}

// ExportEnvelope is the on-disk/over-the-wire shape of ExportTasks /
// ImportTasks.
type ExportEnvelope struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Tasks      []ScheduledTask `json:"tasks"`
}

// ImportMode controls how ImportTasks reconciles incoming tasks against the
// existing store.
type ImportMode string

const (
	ImportMerge   ImportMode = "merge"
	ImportReplace ImportMode = "replace"
)

// ImportResult reports the outcome of ImportTasks. Import never returns an
// error for per-task problems; it collects them here instead.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Statistics is the aggregate view returned by Store.GetStatistics.
type Statistics struct {
	TotalTasks        int           `json:"totalTasks"`
	ActiveTasks       int           `json:"activeTasks"`
	PausedTasks       int           `json:"pausedTasks"`
	UpcomingCount     int           `json:"upcomingCount"`
	TotalExecutions   int           `json:"totalExecutions"`
	CompletedCount    int           `json:"completedCount"`
	FailedCount       int           `json:"failedCount"`
	MeanDurationMs    float64       `json:"meanDurationMs"`
}
