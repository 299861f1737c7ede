package chat

import (
	"encoding/json"
	"time"
)

// Message is one direct message. Persisted messages carry the decimal
// database id; optimistic client copies carry a "local-" id until refetched.
type Message struct {
	ID               string    `json:"id"`
	SenderUsername   string    `json:"senderUsername"`
	ReceiverUsername string    `json:"receiverUsername"`
	Message          string    `json:"message"`
	SentAt           time.Time `json:"sentAt"`
}

// NewMsgRequest is the body of POST /api/chat/messages.
type NewMsgRequest struct {
	MsgContent  string `json:"msgContent"`
	MsgReciever string `json:"msgReciever"`
}

// Event is the frame pushed to websocket subscribers, and the payload
// carried by the broker.
type Event struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// Frame types sent by websocket clients.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// ClientFrame is what a websocket client sends to manage its subscriptions.
type ClientFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}
