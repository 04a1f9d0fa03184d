package leaderlock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	heartbeatInterval = 2 * time.Second
	heartbeatStale    = 5 * time.Second
)

// HeartbeatStore is the minimal persistence a HeartbeatLock needs: a
// single {holderId, timestamp} record, compared-and-swapped so only one
// writer can claim it when stale.
type HeartbeatStore interface {
	// TryClaim atomically sets the record to {holderID, now} if the
	// current record is absent or its timestamp is older than
	// now.Add(-heartbeatStale). Returns whether the claim succeeded.
	TryClaim(ctx context.Context, holderID string, now time.Time, staleAfter time.Duration) (bool, error)
	// Renew rewrites the timestamp for holderID if it is still the
	// current holder. Returns false if leadership was lost (another
	// holder claimed it).
	Renew(ctx context.Context, holderID string, now time.Time) (bool, error)
	// Release clears the record if holderID is still the current holder.
	Release(ctx context.Context, holderID string) error
}

// HeartbeatLock is the fallback strategy used when no exclusive-lock-
// capable store is configured. The current leader rewrites its
// {holderId, timestamp} record every heartbeatInterval; any instance may
// claim the record once its timestamp is older than heartbeatStale.
type HeartbeatLock struct {
	store    HeartbeatStore
	holderID string
	logger   *slog.Logger
	subs     *subscriberSet

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewHeartbeatLock(store HeartbeatStore, logger *slog.Logger) *HeartbeatLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeartbeatLock{
		store:    store,
		holderID: uuid.NewString(),
		logger:   logger,
		subs:     newSubscriberSet(),
	}
}

func (l *HeartbeatLock) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	won, err := l.store.TryClaim(ctx, l.holderID, time.Now(), heartbeatStale)
	if err != nil {
		l.logger.Warn("heartbeat lock: initial claim attempt failed", "error", err)
	}
	l.subs.set(won)

	go l.loop(loopCtx)
	return nil
}

func (l *HeartbeatLock) loop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if l.subs.current() {
				ok, err := l.store.Renew(ctx, l.holderID, now)
				if err != nil {
					l.logger.Warn("heartbeat lock: renew failed", "error", err)
					continue
				}
				if !ok {
					l.subs.set(false)
				}
				continue
			}
			won, err := l.store.TryClaim(ctx, l.holderID, now, heartbeatStale)
			if err != nil {
				l.logger.Warn("heartbeat lock: claim attempt failed", "error", err)
				continue
			}
			if won {
				l.subs.set(true)
			}
		}
	}
}

func (l *HeartbeatLock) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if l.subs.current() {
		if err := l.store.Release(context.Background(), l.holderID); err != nil {
			l.logger.Warn("heartbeat lock: release failed", "error", err)
		}
	}
	l.subs.set(false)
}

func (l *HeartbeatLock) IsLeader() bool {
	return l.subs.current()
}

func (l *HeartbeatLock) Subscribe(fn func(bool)) func() {
	return l.subs.subscribe(fn)
}
