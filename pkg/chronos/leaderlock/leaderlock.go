// Package leaderlock elects exactly one leader among co-located Chronos
// instances sharing a storage realm. Three strategies are provided, in
// order of preference: an exclusive lock, a heartbeat-record fallback,
// and a Redis-backed distributed lock for genuinely cross-host
// deployments.
package leaderlock

import "context"

// Lock elects and tracks leadership for this process. Subscribe delivers
// every transition (including the initial state) as a boolean.
type Lock interface {
	// Start begins attempting to acquire leadership. SoloLock, HeartbeatLock
	// and RedisLock return once the first attempt (win or lose) has
	// resolved; SQLiteLock returns at once and reports a win through
	// Subscribe when its blocking acquire succeeds.
	Start(ctx context.Context) error
	// Stop releases leadership, if held, and stops all background work.
	Stop()
	// IsLeader reports current leadership status.
	IsLeader() bool
	// Subscribe registers fn to be called on every leadership transition,
	// including once immediately with the current status. Returns an
	// unsubscribe func.
	Subscribe(fn func(isLeader bool)) (unsubscribe func())
}
