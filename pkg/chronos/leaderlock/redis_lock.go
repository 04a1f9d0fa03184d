package leaderlock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisLeaseTTL     = 10 * time.Second
	redisRenewEvery   = 3 * time.Second
	redisClaimedEvent = "claimed"
)

// RedisLock is the genuinely cross-host strategy: a `SET NX PX` key gives
// exclusive ownership, periodically refreshed while leader; a Pub/Sub
// channel announces "leader claimed" so followers demote promptly instead
// of waiting out the full lease.
type RedisLock struct {
	client  *redis.Client
	key     string
	channel string
	holder  string
	logger  *slog.Logger
	subs    *subscriberSet

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewRedisLock(client *redis.Client, key string, logger *slog.Logger) *RedisLock {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		key = "chronos:leader"
	}
	return &RedisLock{
		client:  client,
		key:     key,
		channel: key + ":events",
		holder:  uuid.NewString(),
		logger:  logger,
		subs:    newSubscriberSet(),
	}
}

func (l *RedisLock) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	won, err := l.tryAcquire(ctx)
	if err != nil {
		l.logger.Warn("redis lock: initial acquire attempt failed", "error", err)
	}
	l.subs.set(won)

	go l.renewLoop(loopCtx)
	go l.subscribeClaims(loopCtx)
	return nil
}

func (l *RedisLock) tryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.holder, redisLeaseTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *RedisLock) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(redisRenewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.subs.current() {
				ok, err := l.renewLease(ctx)
				if err != nil {
					l.logger.Warn("redis lock: renew failed", "error", err)
					continue
				}
				if !ok {
					l.subs.set(false)
				}
				continue
			}
			won, err := l.tryAcquire(ctx)
			if err != nil {
				l.logger.Warn("redis lock: acquire attempt failed", "error", err)
				continue
			}
			if won {
				l.subs.set(true)
				l.client.Publish(ctx, l.channel, redisClaimedEvent)
			}
		}
	}
}

// renewLease extends the lease only if we still own the key, using a Lua
// script so the check-and-extend is atomic against a concurrent claim.
func (l *RedisLock) renewLease(ctx context.Context) (bool, error) {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
	res, err := script.Run(ctx, l.client, []string{l.key}, l.holder, redisLeaseTTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// subscribeClaims demotes this instance promptly when another instance
// announces it has claimed leadership, rather than waiting for this
// instance's own renew tick to notice the key is gone.
func (l *RedisLock) subscribeClaims(ctx context.Context) {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload != redisClaimedEvent {
				continue
			}
			if !l.subs.current() {
				continue
			}
			owner, err := l.client.Get(ctx, l.key).Result()
			if err == nil && owner != l.holder {
				l.subs.set(false)
			}
		}
	}
}

func (l *RedisLock) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if l.subs.current() {
		script := redis.NewScript(`
			if redis.call("GET", KEYS[1]) == ARGV[1] then
				return redis.call("DEL", KEYS[1])
			end
			return 0
		`)
		ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		if _, err := script.Run(ctx, l.client, []string{l.key}, l.holder).Result(); err != nil {
			l.logger.Warn("redis lock: release failed", "error", err)
		}
		l.client.Publish(ctx, l.channel, redisClaimedEvent)
	}
	l.subs.set(false)
}

func (l *RedisLock) IsLeader() bool {
	return l.subs.current()
}

func (l *RedisLock) Subscribe(fn func(bool)) func() {
	return l.subs.subscribe(fn)
}
