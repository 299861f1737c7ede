package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"devnet/internal/channel"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 1024                // Maximum frame size allowed from peer.
	sendQueueSize  = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens ride in the query string, so any origin that holds one may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	ID       string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	UserID   int
	Username string

	log *zap.Logger
}

// ReadPump applies subscribe/unsubscribe frames from the connection.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-ctx.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Debug("ignoring malformed frame", zap.String("client_id", c.ID), zap.Error(err))
			continue
		}
		c.apply(ctx, frame)
	}
}

func (c *Client) apply(ctx context.Context, frame ClientFrame) {
	// Users may only listen to conversations they are part of.
	if !channel.Includes(frame.Channel, c.Username) {
		c.log.Warn("rejected channel", zap.String("client_id", c.ID), zap.String("username", c.Username), zap.String("channel", frame.Channel))
		return
	}

	switch frame.Type {
	case FrameSubscribe:
		c.Hub.Subscribe(ctx, c, frame.Channel)
	case FrameUnsubscribe:
		c.Hub.Unsubscribe(ctx, c, frame.Channel)
	default:
		c.log.Debug("ignoring unknown frame", zap.String("client_id", c.ID), zap.String("type", frame.Type))
	}
}

// WritePump pumps events from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON event per frame; clients decode frames individually.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
