package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"devnet/internal/api"
	"devnet/internal/channel"
	"devnet/internal/chat"
	"devnet/internal/logging"
	"devnet/internal/realtime"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	baseURL   = flag.String("server", "http://localhost:8080", "server base URL")
	pairCount = flag.Int("pairs", 50, "number of user pairs") // Start small: each pair is two users and two sockets.
	msgCount  = flag.Int("msgs", 20, "messages per user")
	password  = flag.String("password", "password123", "password for generated users")
)

type stats struct {
	sent     atomic.Int64
	failed   atomic.Int64
	received atomic.Int64
}

func main() {
	flag.Parse()
	log, err := logging.New("info")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting stress test", zap.Int("users", *pairCount*2), zap.Int("msgs_per_user", *msgCount))
	start := time.Now()

	var st stats
	var wg sync.WaitGroup
	// Pairs: u-0-a talks to u-0-b, u-1-a talks to u-1-b...
	for i := range *pairCount {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(context.Background(), log, pairID, &st)
		}(i)
	}
	wg.Wait()

	log.Info("load test complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("sent", st.sent.Load()),
		zap.Int64("failed", st.failed.Load()),
		zap.Int64("received", st.received.Load()),
		zap.Int("expected", *pairCount * *msgCount * 4),
	)
}

func runPair(ctx context.Context, log *zap.Logger, pairID int, st *stats) {
	userA := fmt.Sprintf("u-%d-a", pairID)
	userB := fmt.Sprintf("u-%d-b", pairID)

	clientA, err := authenticate(ctx, userA)
	if err != nil {
		log.Warn("login failed", zap.String("user", userA), zap.Error(err))
		return
	}
	clientB, err := authenticate(ctx, userB)
	if err != nil {
		log.Warn("login failed", zap.String("user", userB), zap.Error(err))
		return
	}

	topic := channel.EventChannel(userA, userB)
	connA, err := listen(clientA.Token(), topic)
	if err != nil {
		log.Warn("websocket connect failed", zap.String("user", userA), zap.Error(err))
		return
	}
	defer connA.Close()
	connB, err := listen(clientB.Token(), topic)
	if err != nil {
		log.Warn("websocket connect failed", zap.String("user", userB), zap.Error(err))
		return
	}
	defer connB.Close()

	var readers sync.WaitGroup
	readers.Add(2)
	go countEvents(&readers, connA, *msgCount, st)
	go countEvents(&readers, connB, *msgCount, st)

	var senders sync.WaitGroup
	senders.Add(2)
	go spamChat(ctx, &senders, clientA, userA, userB, st)
	go spamChat(ctx, &senders, clientB, userB, userA, st)
	senders.Wait()
	readers.Wait()
}

// authenticate registers (ignoring "taken") and logs in.
func authenticate(ctx context.Context, username string) (*api.Client, error) {
	c := api.New(*baseURL)
	_, _ = c.Register(ctx, username, *password)
	if _, err := c.Login(ctx, username, *password); err != nil {
		return nil, err
	}
	return c, nil
}

func listen(token, topic string) (*websocket.Conn, error) {
	u, err := realtime.WSURL(*baseURL, token)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(chat.ClientFrame{Type: chat.FrameSubscribe, Channel: topic}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// countEvents reads until want events arrived or the socket goes quiet.
// Each socket sees both sides of the conversation.
func countEvents(wg *sync.WaitGroup, conn *websocket.Conn, want int, st *stats) {
	defer wg.Done()
	for range want * 2 {
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev chat.Event
		if json.Unmarshal(data, &ev) == nil && ev.Event == channel.MessageEvent {
			st.received.Add(1)
		}
	}
}

func spamChat(ctx context.Context, wg *sync.WaitGroup, c *api.Client, from, to string, st *stats) {
	defer wg.Done()
	for i := range *msgCount {
		if _, err := c.NewMsg(ctx, fmt.Sprintf("LoadTest Msg %d from %s", i, from), to); err != nil {
			st.failed.Add(1)
			continue
		}
		st.sent.Add(1)
		// Small sleep to simulate a real network.
		time.Sleep(10 * time.Millisecond)
	}
}
