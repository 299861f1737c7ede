package chat

import (
	"context"

	"devnet/internal/broker"
	"devnet/internal/metrics"

	"go.uber.org/zap"
)

// Hub routes broker events to the websocket clients subscribed to each
// channel. Run is the only goroutine that touches topics and clients.
type Hub struct {
	topics  map[string]map[*Client]bool
	clients map[*Client]map[string]bool

	broadcast   chan delivery    // Broker -> clients
	Register    chan *Client     // New client joins
	Unregister  chan *Client     // Client leaves
	subscribe   chan subscription
	unsubscribe chan subscription

	broker  broker.Broker
	metrics *metrics.Metrics
	log     *zap.Logger
}

type delivery struct {
	channel string
	payload []byte
}

type subscription struct {
	client  *Client
	channel string
}

func NewHub(b broker.Broker, m *metrics.Metrics, log *zap.Logger) *Hub {
	return &Hub{
		topics:      make(map[string]map[*Client]bool),
		clients:     make(map[*Client]map[string]bool),
		broadcast:   make(chan delivery),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broker:      b,
		metrics:     m,
		log:         log,
	}
}

// Run processes hub requests until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			h.remove(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.clients[client] = make(map[string]bool)
			h.metrics.WSConnections.Inc()

		case client := <-h.Unregister:
			// The client may already be gone if it was dropped as slow.
			if _, ok := h.clients[client]; ok {
				h.remove(client)
			}

		case sub := <-h.subscribe:
			subs, ok := h.clients[sub.client]
			if !ok || subs[sub.channel] {
				continue
			}
			subs[sub.channel] = true
			if h.topics[sub.channel] == nil {
				h.topics[sub.channel] = make(map[*Client]bool)
			}
			h.topics[sub.channel][sub.client] = true
			h.metrics.ActiveSubscribers.Inc()

		case sub := <-h.unsubscribe:
			if subs, ok := h.clients[sub.client]; ok && subs[sub.channel] {
				delete(subs, sub.channel)
				h.detach(sub.client, sub.channel)
			}

		case d := <-h.broadcast:
			for client := range h.topics[d.channel] {
				select {
				case client.Send <- d.payload:
					h.metrics.EventsDelivered.Inc()
				default:
					h.log.Warn("dropping slow client", zap.String("client_id", client.ID), zap.String("username", client.Username))
					h.metrics.ClientsDropped.Inc()
					h.remove(client)
				}
			}
		}
	}
}

// SubscribeToBroker feeds broker events into the hub until ctx is done.
func (h *Hub) SubscribeToBroker(ctx context.Context) error {
	return h.broker.Subscribe(ctx, func(ch string, payload []byte) {
		select {
		case h.broadcast <- delivery{channel: ch, payload: payload}:
		case <-ctx.Done():
		}
	})
}

// Subscribe adds channel to the client's subscriptions. Callers authorise first.
func (h *Hub) Subscribe(ctx context.Context, c *Client, channel string) {
	select {
	case h.subscribe <- subscription{client: c, channel: channel}:
	case <-ctx.Done():
	}
}

func (h *Hub) Unsubscribe(ctx context.Context, c *Client, channel string) {
	select {
	case h.unsubscribe <- subscription{client: c, channel: channel}:
	case <-ctx.Done():
	}
}

// remove drops the client from every topic and closes its send queue so
// the write pump sends a close frame.
func (h *Hub) remove(client *Client) {
	for ch := range h.clients[client] {
		h.detach(client, ch)
	}
	delete(h.clients, client)
	close(client.Send)
	h.metrics.WSConnections.Dec()
}

func (h *Hub) detach(client *Client, ch string) {
	members := h.topics[ch]
	delete(members, client)
	if len(members) == 0 {
		delete(h.topics, ch)
	}
	h.metrics.ActiveSubscribers.Dec()
}
