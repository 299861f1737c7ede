package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"devnet/internal/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingTransport struct {
	mu     sync.Mutex
	frames []chat.ClientFrame
	err    error
}

func (t *recordingTransport) Send(_ context.Context, f chat.ClientFrame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.frames = append(t.frames, f)
	return nil
}

func (t *recordingTransport) sent() []chat.ClientFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]chat.ClientFrame(nil), t.frames...)
}

func event(ch, name, data string) chat.Event {
	return chat.Event{Channel: ch, Event: name, Data: json.RawMessage(data)}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	tr := &recordingTransport{}
	m := NewManager(tr, zap.NewNop())
	ctx := context.Background()

	a, err := m.Subscribe(ctx, "newMsg_alice_bob")
	require.NoError(t, err)
	b, err := m.Subscribe(ctx, "newMsg_alice_bob")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, []chat.ClientFrame{{Type: chat.FrameSubscribe, Channel: "newMsg_alice_bob"}}, tr.sent())
	assert.True(t, m.Subscribed("newMsg_alice_bob"))
}

func TestSubscribeFailureLeavesNoChannel(t *testing.T) {
	tr := &recordingTransport{err: errors.New("broken pipe")}
	m := NewManager(tr, zap.NewNop())

	_, err := m.Subscribe(context.Background(), "newMsg_alice_bob")
	require.Error(t, err)
	assert.False(t, m.Subscribed("newMsg_alice_bob"))
	assert.Empty(t, m.Channels())
}

func TestDispatchRoutesByChannelAndEvent(t *testing.T) {
	m := NewManager(&recordingTransport{}, zap.NewNop())
	ctx := context.Background()

	ab, err := m.Subscribe(ctx, "newMsg_alice_bob")
	require.NoError(t, err)
	ac, err := m.Subscribe(ctx, "newMsg_alice_carol")
	require.NoError(t, err)

	var gotAB, gotAC []string
	ab.Bind("msgEvent", func(d json.RawMessage) { gotAB = append(gotAB, string(d)) })
	ac.Bind("msgEvent", func(d json.RawMessage) { gotAC = append(gotAC, string(d)) })

	m.Dispatch(event("newMsg_alice_bob", "msgEvent", `1`))
	m.Dispatch(event("newMsg_alice_bob", "other", `2`))
	m.Dispatch(event("newMsg_alice_carol", "msgEvent", `3`))
	m.Dispatch(event("newMsg_bob_carol", "msgEvent", `4`))

	assert.Equal(t, []string{"1"}, gotAB)
	assert.Equal(t, []string{"3"}, gotAC)
}

func TestDispatchRunsHandlersInBindOrder(t *testing.T) {
	m := NewManager(&recordingTransport{}, zap.NewNop())
	ch, err := m.Subscribe(context.Background(), "newMsg_alice_bob")
	require.NoError(t, err)

	var order []int
	for i := range 5 {
		ch.Bind("msgEvent", func(json.RawMessage) { order = append(order, i) })
	}
	m.Dispatch(event("newMsg_alice_bob", "msgEvent", `{}`))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestUnbindRemovesOnlyThatBinding(t *testing.T) {
	m := NewManager(&recordingTransport{}, zap.NewNop())
	ch, err := m.Subscribe(context.Background(), "newMsg_alice_bob")
	require.NoError(t, err)

	var first, second int
	b1 := ch.Bind("msgEvent", func(json.RawMessage) { first++ })
	ch.Bind("msgEvent", func(json.RawMessage) { second++ })

	m.Unbind(b1)
	m.Unbind(b1)
	m.Dispatch(event("newMsg_alice_bob", "msgEvent", `{}`))

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, ch.Bindings("msgEvent"))
}

func TestUnbindZeroBindingIsNoop(t *testing.T) {
	m := NewManager(&recordingTransport{}, zap.NewNop())
	assert.NotPanics(t, func() { m.Unbind(Binding{}) })
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	tr := &recordingTransport{}
	m := NewManager(tr, zap.NewNop())
	ctx := context.Background()

	ch, err := m.Subscribe(ctx, "newMsg_alice_bob")
	require.NoError(t, err)
	calls := 0
	ch.Bind("msgEvent", func(json.RawMessage) { calls++ })

	require.NoError(t, m.Unsubscribe(ctx, "newMsg_alice_bob"))
	m.Dispatch(event("newMsg_alice_bob", "msgEvent", `{}`))

	assert.Zero(t, calls)
	assert.False(t, m.Subscribed("newMsg_alice_bob"))
	assert.Equal(t, []chat.ClientFrame{
		{Type: chat.FrameSubscribe, Channel: "newMsg_alice_bob"},
		{Type: chat.FrameUnsubscribe, Channel: "newMsg_alice_bob"},
	}, tr.sent())

	// Unknown channel: nothing to send.
	require.NoError(t, m.Unsubscribe(ctx, "newMsg_alice_bob"))
	assert.Len(t, tr.sent(), 2)
}

func TestRepeatedSelectCyclesDoNotAccumulateBindings(t *testing.T) {
	m := NewManager(&recordingTransport{}, zap.NewNop())
	ctx := context.Background()

	var last *Channel
	for range 10 {
		ch, err := m.Subscribe(ctx, "newMsg_alice_bob")
		require.NoError(t, err)
		b := ch.Bind("msgEvent", func(json.RawMessage) {})
		require.NoError(t, m.Unsubscribe(ctx, "newMsg_alice_bob"))
		m.Unbind(b)
		last = ch
	}

	assert.Zero(t, last.Bindings("msgEvent"))
	assert.Empty(t, m.Channels())
}

func TestResubscribeReplaysChannels(t *testing.T) {
	tr := &recordingTransport{}
	m := NewManager(tr, zap.NewNop())
	ctx := context.Background()

	_, err := m.Subscribe(ctx, "newMsg_bob_carol")
	require.NoError(t, err)
	_, err = m.Subscribe(ctx, "newMsg_alice_bob")
	require.NoError(t, err)

	require.NoError(t, m.Resubscribe(ctx))
	frames := tr.sent()
	require.Len(t, frames, 4)
	assert.Equal(t, []chat.ClientFrame{
		{Type: chat.FrameSubscribe, Channel: "newMsg_alice_bob"},
		{Type: chat.FrameSubscribe, Channel: "newMsg_bob_carol"},
	}, frames[2:])
}
