package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"devnet/internal/chat"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// WSTransport keeps one websocket connection to the server open, reconnecting
// with exponential backoff until its context is cancelled.
type WSTransport struct {
	url    string
	dialer *websocket.Dialer
	log    *zap.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	onReconnect func()

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewWSTransport builds a transport for the server at serverURL
// (http or https), authenticating with token.
func NewWSTransport(serverURL, token string, log *zap.Logger) (*WSTransport, error) {
	u, err := WSURL(serverURL, token)
	if err != nil {
		return nil, err
	}
	return &WSTransport{
		url:        u,
		dialer:     websocket.DefaultDialer,
		log:        log,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}, nil
}

// WSURL maps an API base URL onto its websocket endpoint.
func WSURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OnReconnect sets fn to run after every successful reconnect, once
// subscriptions have been restored. Not called for the first connection.
func (t *WSTransport) OnReconnect(fn func()) {
	t.mu.Lock()
	t.onReconnect = fn
	t.mu.Unlock()
}

// Connected reports whether a connection is currently open.
func (t *WSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Send writes frame on the open connection. While disconnected it is a
// no-op: the subscription set is replayed on the next connect.
func (t *WSTransport) Send(_ context.Context, frame chat.ClientFrame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteJSON(frame)
}

// Run connects and feeds inbound events to m until ctx is cancelled.
func (t *WSTransport) Run(ctx context.Context, m *Manager) error {
	backoff := t.minBackoff
	connected := false

	for {
		conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.log.Warn("websocket dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, t.maxBackoff)
			continue
		}
		backoff = t.minBackoff

		t.mu.Lock()
		t.conn = conn
		hook := t.onReconnect
		t.mu.Unlock()

		if err := m.Resubscribe(ctx); err != nil {
			t.log.Warn("resubscribe failed", zap.Error(err))
		}
		if connected && hook != nil {
			hook()
		}
		connected = true

		err = t.read(ctx, conn, m)

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Warn("websocket disconnected", zap.Error(err))
	}
}

func (t *WSTransport) read(ctx context.Context, conn *websocket.Conn, m *Manager) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("closed by server")
			}
			return err
		}
		var ev chat.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.log.Warn("bad event frame", zap.Error(err))
			continue
		}
		m.Dispatch(ev)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
