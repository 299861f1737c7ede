package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"devnet/internal/channel"
	"devnet/internal/chat"
	"devnet/internal/query"
	"devnet/internal/realtime"

	"go.uber.org/zap"
)

// Direction tags a rendered message relative to the local user.
type Direction int

const (
	Sent Direction = iota + 1
	Received
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	default:
		return "unknown"
	}
}

// Entry is one rendered message.
type Entry struct {
	chat.Message
	Direction Direction
}

// Reconciler keeps at most one conversation subscribed and appends the
// partner's realtime messages to that conversation's cache entry.
type Reconciler struct {
	me    string
	cache ChatCache
	rt    Subscriber
	log   *zap.Logger

	mu      sync.Mutex
	partner string
	topic   string
	binding realtime.Binding
}

func NewReconciler(id Identity, cache ChatCache, rt Subscriber, log *zap.Logger) *Reconciler {
	return &Reconciler{me: id.Username, cache: cache, rt: rt, log: log}
}

// Active returns the selected partner, or "" when none is.
func (r *Reconciler) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partner
}

// Select subscribes to the conversation with partner, tearing down the
// previous one first. Selecting the active partner again is a no-op.
func (r *Reconciler) Select(ctx context.Context, partner string) error {
	partner, err := NormalizePartner(partner)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.topic != "" && r.partner == partner {
		return nil
	}
	if r.topic != "" {
		if err := r.teardown(ctx); err != nil {
			r.log.Warn("unsubscribe failed", zap.String("channel", r.topic), zap.Error(err))
		}
	}

	topic := channel.EventChannel(r.me, partner)
	ch, err := r.rt.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	r.partner = partner
	r.topic = topic
	r.binding = ch.Bind(channel.MessageEvent, r.handler(partner))
	return nil
}

// Deselect unsubscribes the active conversation, then unbinds its handler.
func (r *Reconciler) Deselect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.topic == "" {
		return nil
	}
	return r.teardown(ctx)
}

// teardown runs with r.mu held. The binding is dropped even when the
// unsubscribe frame could not be sent.
func (r *Reconciler) teardown(ctx context.Context) error {
	err := r.rt.Unsubscribe(ctx, r.topic)
	r.rt.Unbind(r.binding)
	r.partner, r.topic, r.binding = "", "", realtime.Binding{}
	return err
}

// handler is created once per subscription; its partner never changes.
func (r *Reconciler) handler(partner string) realtime.Handler {
	return func(data json.RawMessage) {
		var m chat.Message
		if err := json.Unmarshal(data, &m); err != nil {
			r.log.Warn("bad message event", zap.Error(err))
			return
		}
		r.Receive(partner, m)
	}
}

// Receive folds an inbound message into partner's conversation. Messages
// the local user sent are already there from the optimistic send.
func (r *Reconciler) Receive(partner string, m chat.Message) bool {
	if m.SenderUsername == r.me {
		return false
	}
	r.cache.SetData(ChatKey(partner), appendMessage(m))
	return true
}

// appendMessage never writes into old's backing array, so snapshots of
// the previous value stay intact.
func appendMessage(m chat.Message) func([]chat.Message, bool) []chat.Message {
	return func(old []chat.Message, _ bool) []chat.Message {
		return append(slices.Clip(old), m)
	}
}

// View renders the cached conversation with partner in sentAt order.
func (r *Reconciler) View(partner string) []Entry {
	msgs, _ := r.cache.GetData(ChatKey(partner))
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.SenderUsername == r.me:
			out = append(out, Entry{Message: m, Direction: Sent})
		case m.ReceiverUsername == r.me:
			out = append(out, Entry{Message: m, Direction: Received})
		default:
			r.log.Debug("skipping foreign message", zap.String("id", m.ID))
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return a.SentAt.Compare(b.SentAt)
	})
	return out
}

// Resync refetches the active conversation.
func (r *Reconciler) Resync(ctx context.Context) error {
	partner := r.Active()
	if partner == "" {
		return nil
	}
	err := r.cache.Invalidate(ctx, ChatKey(partner))
	if errors.Is(err, query.ErrCanceled) {
		return nil
	}
	return err
}

// RunResync resyncs the active conversation every interval until ctx ends.
func (r *Reconciler) RunResync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Resync(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("resync failed", zap.Error(err))
			}
		}
	}
}
