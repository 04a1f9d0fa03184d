package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// taskRow mirrors the tasks table's columns in scan order.
type taskRow struct {
	id, name               string
	description            sql.NullString
	tags                   sql.NullString
	typ                    string
	trigger                string
	payload                sql.NullString
	config                 string
	notification           string
	status                 string
	lastRunAt, nextRunAt   sql.NullTime
	runCount               int
	successCount           int
	failureCount           int
	lastError              sql.NullString
	createdAt, updatedAt   time.Time
}

func scanTask(scanner interface{ Scan(...any) error }) (*taskRow, error) {
	r := &taskRow{}
	err := scanner.Scan(
		&r.id, &r.name, &r.description, &r.tags, &r.typ, &r.trigger, &r.payload,
		&r.config, &r.notification, &r.status, &r.lastRunAt, &r.nextRunAt,
		&r.runCount, &r.successCount, &r.failureCount, &r.lastError,
		&r.createdAt, &r.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// toTask deserializes a scanned row into the domain type. Deserialization
// is failure-tolerant: a corrupt JSON blob returns an error the caller is
// expected to log and skip, never to propagate as a store-wide failure.
func (r *taskRow) toTask() (*chronos.ScheduledTask, error) {
	t := &chronos.ScheduledTask{
		ID:           r.id,
		Name:         r.name,
		Type:         r.typ,
		Status:       chronos.TaskStatus(r.status),
		RunCount:     r.runCount,
		SuccessCount: r.successCount,
		FailureCount: r.failureCount,
		CreatedAt:    r.createdAt,
		UpdatedAt:    r.updatedAt,
	}
	if r.description.Valid {
		t.Description = r.description.String
	}
	if r.lastError.Valid {
		v := r.lastError.String
		t.LastError = &v
	}
	if r.lastRunAt.Valid {
		v := r.lastRunAt.Time
		t.LastRunAt = &v
	}
	if r.nextRunAt.Valid {
		v := r.nextRunAt.Time
		t.NextRunAt = &v
	}
	if r.tags.Valid && r.tags.String != "" {
		if err := json.Unmarshal([]byte(r.tags.String), &t.Tags); err != nil {
			return nil, fmt.Errorf("task %s: corrupt tags: %w", r.id, err)
		}
	}
	if err := json.Unmarshal([]byte(r.trigger), &t.Trigger); err != nil {
		return nil, fmt.Errorf("task %s: corrupt trigger: %w", r.id, err)
	}
	if r.payload.Valid && r.payload.String != "" {
		if err := json.Unmarshal([]byte(r.payload.String), &t.Payload); err != nil {
			return nil, fmt.Errorf("task %s: corrupt payload: %w", r.id, err)
		}
	}
	if err := json.Unmarshal([]byte(r.config), &t.Config); err != nil {
		return nil, fmt.Errorf("task %s: corrupt config: %w", r.id, err)
	}
	if err := json.Unmarshal([]byte(r.notification), &t.Notify); err != nil {
		return nil, fmt.Errorf("task %s: corrupt notification: %w", r.id, err)
	}
	return t, nil
}

func taskArgs(t *chronos.ScheduledTask) ([]any, error) {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return nil, err
	}
	trigger, err := json.Marshal(t.Trigger)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return nil, err
	}
	config, err := json.Marshal(t.Config)
	if err != nil {
		return nil, err
	}
	notification, err := json.Marshal(t.Notify)
	if err != nil {
		return nil, err
	}

	var lastError any
	if t.LastError != nil {
		lastError = *t.LastError
	}
	var lastRunAt, nextRunAt any
	if t.LastRunAt != nil {
		lastRunAt = *t.LastRunAt
	}
	if t.NextRunAt != nil {
		nextRunAt = *t.NextRunAt
	}

	return []any{
		t.ID, t.Name, nullIfEmpty(t.Description), string(tags), t.Type,
		string(trigger), string(payload), string(config), string(notification),
		string(t.Status), lastRunAt, nextRunAt,
		t.RunCount, t.SuccessCount, t.FailureCount, lastError,
		t.CreatedAt, t.UpdatedAt,
	}, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// executionRow mirrors the executions table's columns in scan order.
type executionRow struct {
	id, taskID, taskName, taskType string
	status                        string
	input, output, errStr         sql.NullString
	retryAttempt                  int
	startedAt                     time.Time
	completedAt                   sql.NullTime
	durationMs                    sql.NullInt64
	logs                          sql.NullString
}

func scanExecution(scanner interface{ Scan(...any) error }) (*executionRow, error) {
	r := &executionRow{}
	err := scanner.Scan(
		&r.id, &r.taskID, &r.taskName, &r.taskType, &r.status,
		&r.input, &r.output, &r.errStr, &r.retryAttempt,
		&r.startedAt, &r.completedAt, &r.durationMs, &r.logs,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *executionRow) toExecution() (*chronos.TaskExecution, error) {
	e := &chronos.TaskExecution{
		ID:           r.id,
		TaskID:       r.taskID,
		TaskName:     r.taskName,
		TaskType:     r.taskType,
		Status:       chronos.ExecutionStatus(r.status),
		RetryAttempt: r.retryAttempt,
		StartedAt:    r.startedAt,
	}
	if r.errStr.Valid {
		v := r.errStr.String
		e.Error = &v
	}
	if r.completedAt.Valid {
		v := r.completedAt.Time
		e.CompletedAt = &v
	}
	if r.durationMs.Valid {
		d := time.Duration(r.durationMs.Int64) * time.Millisecond
		e.Duration = &d
	}
	if r.input.Valid && r.input.String != "" {
		if err := json.Unmarshal([]byte(r.input.String), &e.Input); err != nil {
			return nil, fmt.Errorf("execution %s: corrupt input: %w", r.id, err)
		}
	}
	if r.output.Valid && r.output.String != "" {
		if err := json.Unmarshal([]byte(r.output.String), &e.Output); err != nil {
			return nil, fmt.Errorf("execution %s: corrupt output: %w", r.id, err)
		}
	}
	if r.logs.Valid && r.logs.String != "" {
		if err := json.Unmarshal([]byte(r.logs.String), &e.Logs); err != nil {
			return nil, fmt.Errorf("execution %s: corrupt logs: %w", r.id, err)
		}
	}
	return e, nil
}

func executionArgs(e *chronos.TaskExecution) ([]any, error) {
	input, err := json.Marshal(e.Input)
	if err != nil {
		return nil, err
	}
	output, err := json.Marshal(e.Output)
	if err != nil {
		return nil, err
	}
	logs, err := json.Marshal(e.Logs)
	if err != nil {
		return nil, err
	}

	var errStr any
	if e.Error != nil {
		errStr = *e.Error
	}
	var completedAt any
	if e.CompletedAt != nil {
		completedAt = *e.CompletedAt
	}
	var durationMs any
	if e.Duration != nil {
		durationMs = e.Duration.Milliseconds()
	}

	return []any{
		e.ID, e.TaskID, e.TaskName, e.TaskType, string(e.Status),
		string(input), string(output), errStr, e.RetryAttempt,
		e.StartedAt, completedAt, durationMs, string(logs),
	}, nil
}
