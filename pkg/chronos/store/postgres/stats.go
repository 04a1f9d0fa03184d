package postgres

import (
	"context"
	"database/sql"

	"github.com/jholhewres/chronos/pkg/chronos"
)

func (b *Backend) GetStatistics(ctx context.Context) (chronos.Statistics, error) {
	var stats chronos.Statistics

	err := b.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status='active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='paused' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='active' AND next_run_at IS NOT NULL AND next_run_at > NOW() THEN 1 ELSE 0 END), 0)
		FROM tasks`).Scan(
		&stats.TotalTasks, &stats.ActiveTasks, &stats.PausedTasks, &stats.UpcomingCount,
	)
	if err != nil {
		return stats, chronos.NewError(chronos.ErrDB, "aggregate task stats", err)
	}

	var meanDuration sql.NullFloat64
	err = b.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END), 0),
			AVG(duration_ms)
		FROM executions`).Scan(
		&stats.TotalExecutions, &stats.CompletedCount, &stats.FailedCount, &meanDuration,
	)
	if err != nil {
		return stats, chronos.NewError(chronos.ErrDB, "aggregate execution stats", err)
	}
	if meanDuration.Valid {
		stats.MeanDurationMs = meanDuration.Float64
	}

	return stats, nil
}
