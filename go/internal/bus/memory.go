package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryHub connects in-process MemoryBus endpoints so tests can exercise
// multi-context fan-out without a NATS server. Delivery is synchronous and,
// like the real transport, never loops back to the publishing endpoint.
type MemoryHub struct {
	mu        sync.Mutex
	endpoints []*MemoryBus
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{}
}

// Endpoint creates a new bus attached to the hub, representing one execution
// context.
func (h *MemoryHub) Endpoint() *MemoryBus {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := &MemoryBus{hub: h}
	h.endpoints = append(h.endpoints, b)
	return b
}

func (h *MemoryHub) broadcast(sender *MemoryBus, env Envelope) {
	h.mu.Lock()
	targets := make([]*MemoryBus, 0, len(h.endpoints))
	for _, ep := range h.endpoints {
		if ep != sender {
			targets = append(targets, ep)
		}
	}
	h.mu.Unlock()

	for _, ep := range targets {
		ep.deliver(env)
	}
}

// MemoryBus is an in-process Bus endpoint. It also counts publishes so tests
// can assert on relay suppression.
type MemoryBus struct {
	hub *MemoryHub

	mu       sync.Mutex
	handlers []Handler
	sent     int
}

func (b *MemoryBus) Publish(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal bus payload: %w", err)
	}
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
	b.hub.broadcast(b, Envelope{SentAt: time.Now(), Data: payload})
	return nil
}

func (b *MemoryBus) Subscribe(h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := len(b.handlers)
	b.handlers = append(b.handlers, h)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.handlers) {
			b.handlers[idx] = nil
		}
	}, nil
}

// Sent reports how many envelopes this endpoint has published.
func (b *MemoryBus) Sent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}

func (b *MemoryBus) deliver(env Envelope) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(env)
		}
	}
}
