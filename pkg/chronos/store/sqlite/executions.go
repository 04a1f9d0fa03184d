package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

const executionColumns = `id, task_id, task_name, task_type, status, input, output,
	error, retry_attempt, started_at, completed_at, duration_ms, logs`

func (b *Backend) CreateExecution(ctx context.Context, exec *chronos.TaskExecution) error {
	args, err := executionArgs(exec)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "marshal execution", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO executions (`+executionColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`, args...)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "insert execution", err)
	}
	return nil
}

func (b *Backend) UpdateExecution(ctx context.Context, exec *chronos.TaskExecution) error {
	args, err := executionArgs(exec)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "marshal execution", err)
	}
	args = append(args, exec.ID)
	res, err := b.db.ExecContext(ctx, `
		UPDATE executions SET
			task_id=?, task_name=?, task_type=?, status=?, input=?, output=?,
			error=?, retry_attempt=?, started_at=?, completed_at=?, duration_ms=?, logs=?
		WHERE id=?`, args[1:]...)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "update execution", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chronos.NewError(chronos.ErrDB, "execution not found: "+exec.ID, nil)
	}
	return nil
}

func (b *Backend) GetExecution(ctx context.Context, id string) (*chronos.TaskExecution, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id=?`, id)
	r, err := scanExecution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, chronos.NewError(chronos.ErrDB, "get execution", err)
	}
	return r.toExecution()
}

func (b *Backend) queryExecutions(ctx context.Context, query string, args ...any) ([]*chronos.TaskExecution, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, chronos.NewError(chronos.ErrDB, "query executions", err)
	}
	defer rows.Close()

	var execs []*chronos.TaskExecution
	for rows.Next() {
		r, err := scanExecution(rows)
		if err != nil {
			return nil, chronos.NewError(chronos.ErrDB, "scan execution", err)
		}
		e, err := r.toExecution()
		if err != nil {
			b.logger.Warn("skipping corrupt execution row", "error", err)
			continue
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// GetTaskExecutions paginates newest-first; beforeStartedAt, when set, is an
// exclusive cursor so callers can page through history without skipping or
// repeating rows as new executions are inserted concurrently.
func (b *Backend) GetTaskExecutions(ctx context.Context, taskID string, limit int, beforeStartedAt *time.Time) ([]*chronos.TaskExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeStartedAt != nil {
		return b.queryExecutions(ctx, `
			SELECT `+executionColumns+` FROM executions
			WHERE task_id=? AND started_at < ?
			ORDER BY started_at DESC LIMIT ?`, taskID, *beforeStartedAt, limit)
	}
	return b.queryExecutions(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE task_id=?
		ORDER BY started_at DESC LIMIT ?`, taskID, limit)
}

func (b *Backend) GetRecentExecutions(ctx context.Context, limit int) ([]*chronos.TaskExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	return b.queryExecutions(ctx, `
		SELECT `+executionColumns+` FROM executions
		ORDER BY started_at DESC LIMIT ?`, limit)
}

// CleanupOldExecutions range-deletes by started_at so it can use the
// started_at index instead of loading rows to check age in Go.
func (b *Backend) CleanupOldExecutions(ctx context.Context, maxAgeDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	res, err := b.db.ExecContext(ctx, `DELETE FROM executions WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, chronos.NewError(chronos.ErrDB, "cleanup executions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, chronos.NewError(chronos.ErrDB, "cleanup executions: rows affected", err)
	}
	return int(n), nil
}
