package leaderlock

import "context"

// SoloLock is the default fallback: when neither the exclusive-lock nor
// heartbeat strategy is configured, a Scheduler assumes leadership for its
// own process only rather than deadlocking local behavior. It is also the
// natural Lock for a single-instance deployment or for tests that don't
// exercise leader election.
type SoloLock struct {
	subs *subscriberSet
}

func NewSoloLock() *SoloLock {
	return &SoloLock{subs: newSubscriberSet()}
}

func (s *SoloLock) Start(ctx context.Context) error {
	s.subs.set(true)
	return nil
}

func (s *SoloLock) Stop() {
	s.subs.set(false)
}

func (s *SoloLock) IsLeader() bool {
	return s.subs.current()
}

func (s *SoloLock) Subscribe(fn func(isLeader bool)) func() {
	return s.subs.subscribe(fn)
}
