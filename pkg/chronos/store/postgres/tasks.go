package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jholhewres/chronos/pkg/chronos"
)

const taskColumns = `id, name, description, tags, type, trigger, payload, config,
	notification, status, last_run_at, next_run_at, run_count, success_count,
	failure_count, last_error, created_at, updated_at`

func (b *Backend) CreateTask(ctx context.Context, task *chronos.ScheduledTask) error {
	args, err := taskArgs(task)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "marshal task", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`, args...)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "insert task", err)
	}
	return nil
}

func (b *Backend) UpdateTask(ctx context.Context, task *chronos.ScheduledTask) error {
	args, err := taskArgs(task)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "marshal task", err)
	}
	args = append(args, task.ID)
	res, err := b.db.ExecContext(ctx, `
		UPDATE tasks SET
			name=$1, description=$2, tags=$3, type=$4, trigger=$5, payload=$6, config=$7,
			notification=$8, status=$9, last_run_at=$10, next_run_at=$11, run_count=$12,
			success_count=$13, failure_count=$14, last_error=$15, created_at=$16, updated_at=$17
		WHERE id=$18`, args[1:]...)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "update task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chronos.NewError(chronos.ErrTaskNotFound, fmt.Sprintf("task %s", task.ID), nil)
	}
	return nil
}

func (b *Backend) DeleteTask(ctx context.Context, id string) (bool, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return false, chronos.NewError(chronos.ErrDB, "begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return false, chronos.NewError(chronos.ErrDB, "delete task", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM executions WHERE task_id=$1`, id); err != nil {
		return false, chronos.NewError(chronos.ErrDB, "delete executions", err)
	}
	if err := tx.Commit(); err != nil {
		return false, chronos.NewError(chronos.ErrDB, "commit", err)
	}
	return true, nil
}

func (b *Backend) GetTask(ctx context.Context, id string) (*chronos.ScheduledTask, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	r, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, chronos.NewError(chronos.ErrDB, "get task", err)
	}
	return r.toTask()
}

func (b *Backend) queryTasks(ctx context.Context, query string, args ...any) ([]*chronos.ScheduledTask, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, chronos.NewError(chronos.ErrDB, "query tasks", err)
	}
	defer rows.Close()

	var tasks []*chronos.ScheduledTask
	for rows.Next() {
		r, err := scanTask(rows)
		if err != nil {
			return nil, chronos.NewError(chronos.ErrDB, "scan task", err)
		}
		task, err := r.toTask()
		if err != nil {
			b.logger.Warn("skipping corrupt task row", "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (b *Backend) GetAllTasks(ctx context.Context) ([]*chronos.ScheduledTask, error) {
	return b.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at`)
}

func (b *Backend) GetTasksByStatus(ctx context.Context, status chronos.TaskStatus) ([]*chronos.ScheduledTask, error) {
	return b.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status=$1 ORDER BY created_at`, string(status))
}

func (b *Backend) GetActiveEventTasks(ctx context.Context, eventType string) ([]*chronos.ScheduledTask, error) {
	active, err := b.GetTasksByStatus(ctx, chronos.StatusActive)
	if err != nil {
		return nil, err
	}
	var out []*chronos.ScheduledTask
	for _, t := range active {
		if t.Trigger.Type != chronos.TriggerEvent {
			continue
		}
		if eventType != "" && t.Trigger.EventType != eventType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (b *Backend) GetUpcomingTasks(ctx context.Context, limit int) ([]*chronos.ScheduledTask, error) {
	if limit <= 0 {
		limit = 50
	}
	return b.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status=$1 AND next_run_at IS NOT NULL AND next_run_at > NOW()
		ORDER BY next_run_at ASC LIMIT $2`, string(chronos.StatusActive), limit)
}

func (b *Backend) GetFilteredTasks(ctx context.Context, filter chronos.TaskFilter) ([]*chronos.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	n := 0

	if len(filter.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(&n, len(filter.Statuses)) + `)`
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if len(filter.Types) > 0 {
		query += ` AND type IN (` + placeholders(&n, len(filter.Types)) + `)`
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}
	query += ` ORDER BY created_at`

	tasks, err := b.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if len(filter.Tags) == 0 && filter.Search == "" {
		return tasks, nil
	}

	var out []*chronos.ScheduledTask
	for _, t := range tasks {
		if len(filter.Tags) > 0 && !hasAnyTag(t.Tags, filter.Tags) {
			continue
		}
		if filter.Search != "" && !matchesSearch(t, filter.Search) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// placeholders emits n sequential $-placeholders starting after *next,
// advancing *next as it goes (Postgres placeholders are positional across
// the whole query, unlike SQLite's repeatable '?').
func placeholders(next *int, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		*next++
		parts[i] = fmt.Sprintf("$%d", *next)
	}
	return strings.Join(parts, ",")
}

func hasAnyTag(tags, want []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func matchesSearch(t *chronos.ScheduledTask, search string) bool {
	q := strings.ToLower(search)
	return strings.Contains(strings.ToLower(t.Name), q) ||
		strings.Contains(strings.ToLower(t.Description), q)
}
