// Package realtime is the client side of the websocket event stream: named
// channel subscriptions with event handlers bound to them.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"devnet/internal/chat"

	"go.uber.org/zap"
)

// Handler receives the data of one event.
type Handler func(data json.RawMessage)

// Transport carries subscription frames to the server.
type Transport interface {
	Send(ctx context.Context, frame chat.ClientFrame) error
}

// Binding identifies one Bind call. Unbind removes exactly that handler.
type Binding struct {
	channel *Channel
	event   string
	id      uint64
}

// Channel is a live subscription returned by Manager.Subscribe.
type Channel struct {
	name     string
	mgr      *Manager
	bindings map[string]map[uint64]Handler // guarded by mgr.mu
}

// Name returns the channel name.
func (ch *Channel) Name() string { return ch.name }

// Bind registers fn for event on this channel.
func (ch *Channel) Bind(event string, fn Handler) Binding {
	m := ch.mgr
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	if ch.bindings[event] == nil {
		ch.bindings[event] = make(map[uint64]Handler)
	}
	ch.bindings[event][m.nextID] = fn
	return Binding{channel: ch, event: event, id: m.nextID}
}

// Bindings returns how many handlers are bound for event.
func (ch *Channel) Bindings(event string) int {
	ch.mgr.mu.Lock()
	defer ch.mgr.mu.Unlock()
	return len(ch.bindings[event])
}

// Manager tracks subscribed channels and dispatches inbound events.
type Manager struct {
	mu        sync.Mutex
	channels  map[string]*Channel
	nextID    uint64
	transport Transport
	log       *zap.Logger
}

func NewManager(t Transport, log *zap.Logger) *Manager {
	return &Manager{
		channels:  make(map[string]*Channel),
		transport: t,
		log:       log,
	}
}

// Subscribe returns the channel named name, subscribing on first use.
func (m *Manager) Subscribe(ctx context.Context, name string) (*Channel, error) {
	m.mu.Lock()
	if ch, ok := m.channels[name]; ok {
		m.mu.Unlock()
		return ch, nil
	}
	ch := &Channel{name: name, mgr: m, bindings: make(map[string]map[uint64]Handler)}
	m.channels[name] = ch
	m.mu.Unlock()

	if err := m.transport.Send(ctx, chat.ClientFrame{Type: chat.FrameSubscribe, Channel: name}); err != nil {
		m.mu.Lock()
		if m.channels[name] == ch {
			delete(m.channels, name)
		}
		m.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}
	m.log.Debug("subscribed", zap.String("channel", name))
	return ch, nil
}

// Unsubscribe stops delivery for name. Handlers stay bound to the old
// Channel value until unbound.
func (m *Manager) Unsubscribe(ctx context.Context, name string) error {
	m.mu.Lock()
	_, ok := m.channels[name]
	delete(m.channels, name)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if err := m.transport.Send(ctx, chat.ClientFrame{Type: chat.FrameUnsubscribe, Channel: name}); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", name, err)
	}
	m.log.Debug("unsubscribed", zap.String("channel", name))
	return nil
}

// Unbind removes the handler registered by b. Unbinding twice is a no-op.
func (m *Manager) Unbind(b Binding) {
	if b.channel == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	handlers := b.channel.bindings[b.event]
	delete(handlers, b.id)
	if len(handlers) == 0 {
		delete(b.channel.bindings, b.event)
	}
}

// Subscribed reports whether name is currently subscribed.
func (m *Manager) Subscribed(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[name]
	return ok
}

// Channels returns the subscribed channel names, sorted.
func (m *Manager) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resubscribe re-sends a subscribe frame for every channel, after a reconnect.
func (m *Manager) Resubscribe(ctx context.Context) error {
	for _, name := range m.Channels() {
		if err := m.transport.Send(ctx, chat.ClientFrame{Type: chat.FrameSubscribe, Channel: name}); err != nil {
			return fmt.Errorf("resubscribe %s: %w", name, err)
		}
	}
	return nil
}

// Dispatch delivers ev to the handlers bound for it, in bind order.
// Events for channels that are not subscribed are dropped.
func (m *Manager) Dispatch(ev chat.Event) {
	m.mu.Lock()
	ch, ok := m.channels[ev.Channel]
	if !ok {
		m.mu.Unlock()
		m.log.Debug("dropping event for unsubscribed channel", zap.String("channel", ev.Channel))
		return
	}
	bound := ch.bindings[ev.Event]
	ids := make([]uint64, 0, len(bound))
	for id := range bound {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, bound[id])
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(ev.Data)
	}
}
