package broker

import (
	"context"
	"strings"
	"sync"

	"devnet/internal/channel"
)

// Memory is an in-process Broker for a single instance and for tests.
type Memory struct {
	mu     sync.Mutex
	subs   map[int]chan event
	nextID int
	closed bool
}

type event struct {
	channel string
	payload []byte
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[int]chan event)}
}

func (m *Memory) Publish(_ context.Context, ch string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if !strings.HasPrefix(ch, channel.MessagePrefix) {
		return nil
	}
	for _, sub := range m.subs {
		select {
		case sub <- event{channel: ch, payload: payload}:
		default:
			// Drop rather than block every publisher on one slow subscriber.
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, fn Handler) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	id := m.nextID
	m.nextID++
	sub := make(chan event, 256)
	m.subs[id] = sub
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub:
			if !ok {
				return ErrClosed
			}
			fn(ev.channel, ev.payload)
		}
	}
}

// Subscribers reports how many Subscribe calls are active.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for id, sub := range m.subs {
		close(sub)
		delete(m.subs, id)
	}
	return nil
}
