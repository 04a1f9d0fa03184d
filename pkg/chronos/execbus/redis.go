package execbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus broadcasts ExecutionStatusEvent across instances sharing one
// Redis deployment via Pub/Sub, reusing the same client as
// leaderlock.RedisLock when both are configured.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewRedisBus(client *redis.Client, channel string, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = "chronos:executions"
	}
	return &RedisBus{client: client, channel: channel, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, event ExecutionStatusEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("execbus: marshal event failed", "error", err)
		return
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Warn("execbus: publish failed", "error", err)
	}
}

// Subscribe starts a background Pub/Sub receive loop that delivers events
// to fn. The returned unsubscribe stops that loop. Close stops the loop of
// the first subscriber only.
func (b *RedisBus) Subscribe(fn func(ExecutionStatusEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		go b.receiveLoop(ctx, fn)
		return func() { cancel() }
	}

	// A second subscriber on an already-running loop is rare (one
	// RedisBus typically backs exactly one Scheduler instance); wrap fn
	// into the existing loop by chaining isn't supported, so just start
	// an independent subscription for it.
	ctx, cancel := context.WithCancel(context.Background())
	go b.receiveLoop(ctx, fn)
	return func() { cancel() }
}

func (b *RedisBus) receiveLoop(ctx context.Context, fn func(ExecutionStatusEvent)) {
	sub := b.client.Subscribe(ctx, b.channel)
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
			var event ExecutionStatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("execbus: unmarshal event failed", "error", err)
				continue
			}
			fn(event)
		}
	}
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}
