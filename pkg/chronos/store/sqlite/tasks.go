package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
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
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, args...)
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
	// taskArgs leads with id; it is dropped from the SET list (args[1:])
	// and appended again as the WHERE key.
	args = append(args, task.ID)
	res, err := b.db.ExecContext(ctx, `
		UPDATE tasks SET
			name=?, description=?, tags=?, type=?, trigger=?, payload=?, config=?,
			notification=?, status=?, last_run_at=?, next_run_at=?, run_count=?,
			success_count=?, failure_count=?, last_error=?, created_at=?, updated_at=?
		WHERE id=?`, args[1:]...)
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

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return false, chronos.NewError(chronos.ErrDB, "delete task", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM executions WHERE task_id=?`, id); err != nil {
		return false, chronos.NewError(chronos.ErrDB, "delete executions", err)
	}
	if err := tx.Commit(); err != nil {
		return false, chronos.NewError(chronos.ErrDB, "commit", err)
	}
	return true, nil
}

func (b *Backend) GetTask(ctx context.Context, id string) (*chronos.ScheduledTask, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	r, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, chronos.NewError(chronos.ErrDB, "get task", err)
	}
	return r.toTask()
}

// queryTasks runs query, scanning each row and logging+skipping any that
// fail to deserialize rather than failing the whole call.
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
	return b.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status=? ORDER BY created_at`, string(status))
}

// GetActiveEventTasks scans active tasks (status index) and filters to
// event-triggered tasks in memory, since the trigger column is an opaque
// JSON blob the SQL layer can't index into.
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
	sortTasksByNextRun(out)
	return out, nil
}

func (b *Backend) GetUpcomingTasks(ctx context.Context, limit int) ([]*chronos.ScheduledTask, error) {
	if limit <= 0 {
		limit = 50
	}
	return b.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status=? AND next_run_at IS NOT NULL AND next_run_at > CURRENT_TIMESTAMP
		ORDER BY next_run_at ASC LIMIT ?`, string(chronos.StatusActive), limit)
}

// GetFilteredTasks applies Statuses and Types in SQL (both are closed,
// indexable sets) and Tags/Search in memory, since tags is a JSON array and
// search spans name/description free text.
func (b *Backend) GetFilteredTasks(ctx context.Context, filter chronos.TaskFilter) ([]*chronos.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any

	if len(filter.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(filter.Statuses)) + `)`
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if len(filter.Types) > 0 {
		query += ` AND type IN (` + placeholders(len(filter.Types)) + `)`
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

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
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

// sortTasksByNextRun is used by callers that need a stable ascending order
// over a slice already fetched another way (e.g. after the in-memory event
// filter above, which doesn't preserve a next-run ordering).
func sortTasksByNextRun(tasks []*chronos.ScheduledTask) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].NextRunAt, tasks[j].NextRunAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
}
