//go:build integration

package broker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func roundTrip(t *testing.T, b Broker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan string, 1)
	go func() {
		_ = b.Subscribe(ctx, func(ch string, payload []byte) {
			select {
			case got <- ch + "|" + string(payload):
			default:
			}
		})
	}()

	// Subscriptions are asynchronous; publish until one lands.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		require.NoError(t, b.Publish(ctx, "newMsg_alice_dev.ops", []byte("yo")))
		select {
		case v := <-got:
			assert.Equal(t, "newMsg_alice_dev.ops|yo", v)
			return
		case <-tick.C:
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	b, err := DialRedis(context.Background(), addr, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	roundTrip(t, b)
}

func TestNATSRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	b, err := DialNATS(url, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	roundTrip(t, b)
}
