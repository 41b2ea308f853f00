package events

import (
	"context"
	"sync"
)

// InProcessBus delivers events to subscribers within the same process.
// Cross-instance fan-out is intentionally not supported.
type InProcessBus struct {
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
}

func NewInProcessBus() *InProcessBus {
	return &InProcessBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

func (b *InProcessBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

func (b *InProcessBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers[event.Type]))
	copy(handlers, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
