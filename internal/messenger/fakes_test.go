package messenger

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"devnet/internal/chat"
	"devnet/internal/query"
	"devnet/internal/realtime"
	"devnet/internal/user"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id, from, to, body string, at time.Time) chat.Message {
	return chat.Message{ID: id, SenderUsername: from, ReceiverUsername: to, Message: body, SentAt: at}
}

// countingCache records Invalidate calls per key.
type countingCache struct {
	*query.Cache[[]chat.Message]

	mu            sync.Mutex
	invalidations map[string]int
}

func newCountingCache() *countingCache {
	return &countingCache{
		Cache:         query.New[[]chat.Message](zap.NewNop()),
		invalidations: make(map[string]int),
	}
}

func (c *countingCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	c.invalidations[key]++
	c.mu.Unlock()
	return c.Cache.Invalidate(ctx, key)
}

func (c *countingCache) invalidated(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations[key]
}

type recordingTransport struct {
	mu     sync.Mutex
	frames []chat.ClientFrame
}

func (t *recordingTransport) Send(_ context.Context, f chat.ClientFrame) error {
	t.mu.Lock()
	t.frames = append(t.frames, f)
	t.mu.Unlock()
	return nil
}

func (t *recordingTransport) sent() []chat.ClientFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.frames)
}

func newManager() (*realtime.Manager, *recordingTransport) {
	tr := &recordingTransport{}
	return realtime.NewManager(tr, zap.NewNop()), tr
}

type fakeAPI struct {
	mu       sync.Mutex
	users    []user.User
	chats    map[string][]chat.Message
	sendErr  error
	gate     chan struct{}
	sent     []chat.NewMsgRequest
	listErr  error
	listCall int
	getCall  int
}

func newFakeAPI(partners ...string) *fakeAPI {
	a := &fakeAPI{chats: make(map[string][]chat.Message)}
	for i, p := range partners {
		a.users = append(a.users, user.User{ID: i + 2, Username: p})
	}
	return a
}

func (a *fakeAPI) ListUsers(context.Context) ([]user.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listCall++
	return slices.Clone(a.users), a.listErr
}

func (a *fakeAPI) GetChat(_ context.Context, other string) ([]chat.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.getCall++
	return slices.Clone(a.chats[other]), nil
}

func (a *fakeAPI) NewMsg(ctx context.Context, content, receiver string) (*chat.Message, error) {
	a.mu.Lock()
	gate := a.gate
	a.sent = append(a.sent, chat.NewMsgRequest{MsgContent: content, MsgReciever: receiver})
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	m := msg("99", "alice", receiver, content, t0)
	return &m, nil
}

func (a *fakeAPI) setChat(partner string, msgs ...chat.Message) {
	a.mu.Lock()
	a.chats[partner] = msgs
	a.mu.Unlock()
}

func (a *fakeAPI) calls() (list, get int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listCall, a.getCall
}

// notes collects notifier output.
type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) notify(s string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, s)
	n.mu.Unlock()
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.msgs)
}
