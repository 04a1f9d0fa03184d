package leaderlock

import (
	"context"
	"database/sql"
	"time"
)

// SQLHeartbeatStore implements HeartbeatStore against a plain *sql.DB
// (chronosd opens a dedicated one on the leader lock_path), using a single-row table
// compare-and-swap on the timestamp to decide claims.
type SQLHeartbeatStore struct {
	db *sql.DB
}

func NewSQLHeartbeatStore(db *sql.DB) (*SQLHeartbeatStore, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS leader_heartbeat (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			holder_id TEXT NOT NULL,
			heartbeat_at DATETIME NOT NULL
		)`); err != nil {
		return nil, err
	}
	return &SQLHeartbeatStore{db: db}, nil
}

func (s *SQLHeartbeatStore) TryClaim(ctx context.Context, holderID string, now time.Time, staleAfter time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leader_heartbeat SET holder_id=?, heartbeat_at=?
		WHERE id=1 AND heartbeat_at < ?`, holderID, now, now.Add(-staleAfter))
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	res, err = s.db.ExecContext(ctx, `
		INSERT INTO leader_heartbeat (id, holder_id, heartbeat_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO NOTHING`, holderID, now)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLHeartbeatStore) Renew(ctx context.Context, holderID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leader_heartbeat SET heartbeat_at=? WHERE id=1 AND holder_id=?`, now, holderID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLHeartbeatStore) Release(ctx context.Context, holderID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM leader_heartbeat WHERE id=1 AND holder_id=?`, holderID)
	return err
}
