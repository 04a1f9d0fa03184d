package leaderlock

import (
	"context"
	"testing"
	"time"
)

func TestSubscriberSetDeliversCurrentStateImmediately(t *testing.T) {
	s := newSubscriberSet()
	s.set(true)

	var got bool
	s.subscribe(func(leader bool) { got = leader })
	if !got {
		t.Fatal("expected late subscriber to receive current state immediately")
	}
}

func TestSubscriberSetOnlyNotifiesOnChange(t *testing.T) {
	s := newSubscriberSet()
	calls := 0
	s.subscribe(func(bool) { calls++ })

	s.set(true)       // first state: notifies
	s.set(true)       // no change: should not notify again
	s.set(false)       // transition: notifies

	if calls != 2 {
		t.Fatalf("want 2 calls, got %d", calls)
	}
}

type fakeHeartbeatStore struct {
	holder string
	at     time.Time
}

func (f *fakeHeartbeatStore) TryClaim(_ context.Context, holderID string, now time.Time, staleAfter time.Duration) (bool, error) {
	if f.holder == "" || now.Sub(f.at) > staleAfter {
		f.holder = holderID
		f.at = now
		return true, nil
	}
	return false, nil
}

func (f *fakeHeartbeatStore) Renew(_ context.Context, holderID string, now time.Time) (bool, error) {
	if f.holder != holderID {
		return false, nil
	}
	f.at = now
	return true, nil
}

func (f *fakeHeartbeatStore) Release(_ context.Context, holderID string) error {
	if f.holder == holderID {
		f.holder = ""
	}
	return nil
}

func TestHeartbeatStoreClaimAndStale(t *testing.T) {
	store := &fakeHeartbeatStore{}
	ctx := context.Background()
	now := time.Now()

	won, err := store.TryClaim(ctx, "a", now, heartbeatStale)
	if err != nil || !won {
		t.Fatalf("first claim should win: won=%v err=%v", won, err)
	}

	won, err = store.TryClaim(ctx, "b", now.Add(time.Second), heartbeatStale)
	if err != nil || won {
		t.Fatalf("second claim should lose while fresh: won=%v err=%v", won, err)
	}

	won, err = store.TryClaim(ctx, "b", now.Add(heartbeatStale+time.Second), heartbeatStale)
	if err != nil || !won {
		t.Fatalf("claim should win once stale: won=%v err=%v", won, err)
	}
}

func TestHeartbeatLockTransitionsViaSubscription(t *testing.T) {
	store := &fakeHeartbeatStore{}
	lock := NewHeartbeatLock(store, nil)

	var transitions []bool
	lock.Subscribe(func(leader bool) { transitions = append(transitions, leader) })

	if err := lock.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer lock.Stop()

	if !lock.IsLeader() {
		t.Fatal("sole instance should win leadership on first claim")
	}
	if len(transitions) == 0 || !transitions[len(transitions)-1] {
		t.Fatalf("expected a true transition, got %v", transitions)
	}
}
