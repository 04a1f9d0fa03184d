package execbus

import (
	"context"
	"log/slog"
	"sync"
)

// InProcessBus fans events out to local subscribers only, calling each
// subscriber on its own goroutine. This is the default bus for single-instance deployments and
// for tests; a slow or absent subscriber never blocks Publish.
type InProcessBus struct {
	mu          sync.Mutex
	subscribers map[int]func(ExecutionStatusEvent)
	nextID      int
	logger      *slog.Logger
}

func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{subscribers: make(map[int]func(ExecutionStatusEvent)), logger: logger}
}

func (b *InProcessBus) Publish(_ context.Context, event ExecutionStatusEvent) {
	b.mu.Lock()
	subs := make([]func(ExecutionStatusEvent), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn := fn
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Warn("execbus subscriber panicked", "recover", r)
				}
			}()
			fn(event)
		}()
	}
}

func (b *InProcessBus) Subscribe(fn func(ExecutionStatusEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

func (b *InProcessBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[int]func(ExecutionStatusEvent))
	return nil
}
