package messenger

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"devnet/internal/api"
	"devnet/internal/chat"
	"devnet/internal/query"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// LocalIDPrefix marks ids of optimistic messages not yet confirmed.
const LocalIDPrefix = "local-"

// Composer sends messages optimistically: the message shows up in the
// cache at once, is rolled back if the server rejects it, and the
// conversation is refetched once the send settles either way.
type Composer struct {
	me     string
	cache  ChatCache
	sender Sender
	notify Notifier
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

type ComposerOption func(*Composer)

// WithClock overrides the clock used for optimistic sentAt values.
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

func NewComposer(id Identity, cache ChatCache, sender Sender, notify Notifier, log *zap.Logger, opts ...ComposerOption) *Composer {
	c := &Composer{
		me:      id.Username,
		cache:   cache,
		sender:  sender,
		notify:  notify,
		log:     log,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers text to receiver. The returned error is the server's
// rejection, already reported through the notifier.
func (c *Composer) Send(ctx context.Context, receiver, text string) error {
	key := ChatKey(receiver)

	snap, err := c.apply(key, receiver, text)
	if err != nil {
		return err
	}

	_, sendErr := c.sender.NewMsg(ctx, text, receiver)
	if sendErr != nil {
		c.cache.Restore(key, snap)
		if c.notify != nil {
			c.notify(api.Message(sendErr))
		}
		c.log.Info("send failed", zap.String("receiver", receiver), zap.Error(sendErr))
	}

	if err := c.cache.Invalidate(ctx, key); err != nil && !errors.Is(err, query.ErrCanceled) {
		c.log.Warn("refetch after send failed", zap.String("receiver", receiver), zap.Error(err))
	}
	return sendErr
}

// apply cancels any fetch for key, snapshots it and appends the
// optimistic copy, as one step with respect to other sends.
func (c *Composer) apply(key, receiver, text string) (query.Snapshot[[]chat.Message], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Cancel(key)
	snap := c.cache.Snapshot(key)

	now := c.now()
	id, err := ulid.New(ulid.Timestamp(now), c.entropy)
	if err != nil {
		return snap, err
	}
	c.cache.SetData(key, appendMessage(chat.Message{
		ID:               LocalIDPrefix + id.String(),
		SenderUsername:   c.me,
		ReceiverUsername: receiver,
		Message:          text,
		SentAt:           now,
	}))
	return snap, nil
}
