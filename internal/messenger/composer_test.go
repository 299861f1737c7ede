package messenger

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"devnet/internal/api"
	"devnet/internal/chat"
	"devnet/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixedClock() time.Time { return t0 }

func TestSendAppliesOptimisticallyThenRefetches(t *testing.T) {
	cache := newCountingCache()
	a := newFakeAPI("bob")
	a.gate = make(chan struct{})
	key := ChatKey("bob")

	authoritative := []chat.Message{msg("42", "alice", "bob", "hi", t0.Add(time.Second))}
	cache.Register(key, func(context.Context) ([]chat.Message, error) { return authoritative, nil })

	c := NewComposer(Identity{Username: "alice"}, cache, a, nil, zap.NewNop(), WithClock(fixedClock))

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "bob", "hi") }()

	require.Eventually(t, func() bool {
		_, ok := cache.GetData(key)
		return ok
	}, 2*time.Second, time.Millisecond)

	optimistic, _ := cache.GetData(key)
	require.Len(t, optimistic, 1)
	assert.True(t, strings.HasPrefix(optimistic[0].ID, LocalIDPrefix))
	assert.Equal(t, "alice", optimistic[0].SenderUsername)
	assert.Equal(t, "bob", optimistic[0].ReceiverUsername)
	assert.Equal(t, "hi", optimistic[0].Message)
	assert.Equal(t, t0, optimistic[0].SentAt)
	assert.Zero(t, cache.invalidated(key))

	close(a.gate)
	require.NoError(t, <-done)

	got, _ := cache.GetData(key)
	assert.Equal(t, authoritative, got)
	assert.Equal(t, 1, cache.invalidated(key))
	assert.Equal(t, []chat.NewMsgRequest{{MsgContent: "hi", MsgReciever: "bob"}}, a.sent)
}

func TestFailedSendRestoresSnapshotExactly(t *testing.T) {
	cache := newCountingCache()
	a := newFakeAPI("bob")
	a.sendErr = &api.Error{Status: http.StatusBadRequest, Message: "message is empty"}
	key := ChatKey("bob")

	before := []chat.Message{
		msg("1", "bob", "alice", "a", t0),
		msg("2", "alice", "bob", "b", t0.Add(time.Second)),
	}
	cache.SetData(key, func([]chat.Message, bool) []chat.Message { return before })

	var n notes
	c := NewComposer(Identity{Username: "alice"}, cache, a, n.notify, zap.NewNop())

	err := c.Send(context.Background(), "bob", "")
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))

	got, ok := cache.GetData(key)
	require.True(t, ok)
	assert.Equal(t, before, got)
	assert.Equal(t, []string{"message is empty"}, n.all())
	assert.Equal(t, 1, cache.invalidated(key))
}

func TestFailedSendOnEmptyCacheLeavesNoEntry(t *testing.T) {
	cache := newCountingCache()
	a := newFakeAPI("bob")
	a.sendErr = errors.New("connection refused")

	var n notes
	c := NewComposer(Identity{Username: "alice"}, cache, a, n.notify, zap.NewNop())
	require.Error(t, c.Send(context.Background(), "bob", "hi"))

	_, ok := cache.GetData(ChatKey("bob"))
	assert.False(t, ok)
	assert.Equal(t, []string{"connection refused"}, n.all())
}

func TestRollbackDiscardsInterleavedEvents(t *testing.T) {
	cache := newCountingCache()
	a := newFakeAPI("bob")
	a.gate = make(chan struct{})
	a.sendErr = &api.Error{Status: http.StatusBadGateway, Message: "try later"}
	key := ChatKey("bob")

	c := NewComposer(Identity{Username: "alice"}, cache, a, nil, zap.NewNop())
	r := NewReconciler(Identity{Username: "alice"}, cache, nil, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "bob", "hi") }()
	require.Eventually(t, func() bool {
		_, ok := cache.GetData(key)
		return ok
	}, 2*time.Second, time.Millisecond)

	r.Receive("bob", msg("9", "bob", "alice", "meanwhile", t0))
	got, _ := cache.GetData(key)
	require.Len(t, got, 2)

	close(a.gate)
	require.Error(t, <-done)

	_, ok := cache.GetData(key)
	assert.False(t, ok)
}

func TestSendDiscardsInflightFetch(t *testing.T) {
	cache := newCountingCache()
	a := newFakeAPI("bob")
	key := ChatKey("bob")

	release := make(chan struct{})
	stale := []chat.Message{msg("old", "bob", "alice", "stale", t0)}
	fresh := []chat.Message{msg("42", "alice", "bob", "hi", t0)}
	started := make(chan struct{})
	var calls atomic.Int32
	cache.Register(key, func(ctx context.Context) ([]chat.Message, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return stale, nil
		}
		return fresh, nil
	})

	fetched := make(chan error, 1)
	go func() {
		_, err := cache.Fetch(context.Background(), key)
		fetched <- err
	}()
	<-started

	c := NewComposer(Identity{Username: "alice"}, cache, a, nil, zap.NewNop())
	require.NoError(t, c.Send(context.Background(), "bob", "hi"))

	close(release)
	assert.ErrorIs(t, <-fetched, query.ErrCanceled)

	got, _ := cache.GetData(key)
	assert.Equal(t, fresh, got)
}

func TestLocalIDsAreUniqueAndOrdered(t *testing.T) {
	cache := newCountingCache()
	a := newFakeAPI("bob")
	c := NewComposer(Identity{Username: "alice"}, cache, a, nil, zap.NewNop(), WithClock(fixedClock))

	for range 20 {
		require.NoError(t, c.Send(context.Background(), "bob", "x"))
	}

	got, _ := cache.GetData(ChatKey("bob"))
	require.Len(t, got, 20)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].ID, got[i].ID)
	}
	assert.Equal(t, 20, cache.invalidated(ChatKey("bob")))
}
