package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-binary runs. It
// keeps the same at-most-once contract: no subscriber, no delivery.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(data []byte)
	closed   bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]func(data []byte))}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, msg any) error {
	const op = "bus.MemoryBus.Publish"

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	b.mu.RLock()
	handlers := append([]func(data []byte){}, b.handlers[channel]...)
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return fmt.Errorf("%s: bus is closed", op)
	}
	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string, handler func(data []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], handler)
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]func(data []byte))
	return nil
}
