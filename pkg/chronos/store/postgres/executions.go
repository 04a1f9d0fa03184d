package postgres

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
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, args...)
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
			task_id=$1, task_name=$2, task_type=$3, status=$4, input=$5, output=$6,
			error=$7, retry_attempt=$8, started_at=$9, completed_at=$10, duration_ms=$11, logs=$12
		WHERE id=$13`, args[1:]...)
	if err != nil {
		return chronos.NewError(chronos.ErrDB, "update execution", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chronos.NewError(chronos.ErrDB, "execution not found: "+exec.ID, nil)
	}
	return nil
}

func (b *Backend) GetExecution(ctx context.Context, id string) (*chronos.TaskExecution, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id=$1`, id)
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

func (b *Backend) GetTaskExecutions(ctx context.Context, taskID string, limit int, beforeStartedAt *time.Time) ([]*chronos.TaskExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeStartedAt != nil {
		return b.queryExecutions(ctx, `
			SELECT `+executionColumns+` FROM executions
			WHERE task_id=$1 AND started_at < $2
			ORDER BY started_at DESC LIMIT $3`, taskID, *beforeStartedAt, limit)
	}
	return b.queryExecutions(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE task_id=$1
		ORDER BY started_at DESC LIMIT $2`, taskID, limit)
}

func (b *Backend) GetRecentExecutions(ctx context.Context, limit int) ([]*chronos.TaskExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	return b.queryExecutions(ctx, `
		SELECT `+executionColumns+` FROM executions
		ORDER BY started_at DESC LIMIT $1`, limit)
}

func (b *Backend) CleanupOldExecutions(ctx context.Context, maxAgeDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	res, err := b.db.ExecContext(ctx, `DELETE FROM executions WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, chronos.NewError(chronos.ErrDB, "cleanup executions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, chronos.NewError(chronos.ErrDB, "cleanup executions: rows affected", err)
	}
	return int(n), nil
}
