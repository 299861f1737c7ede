package chat

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

type memStore struct {
	mu   sync.Mutex
	msgs []Message
	now  time.Time
}

func newMemStore() *memStore {
	return &memStore{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (m *memStore) SaveMessage(_ context.Context, sender, receiver, content string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(time.Second)
	msg := Message{
		ID:               strconv.Itoa(len(m.msgs) + 1),
		SenderUsername:   sender,
		ReceiverUsername: receiver,
		Message:          content,
		SentAt:           m.now,
	}
	m.msgs = append(m.msgs, msg)
	return &msg, nil
}

func (m *memStore) GetChat(_ context.Context, a, b string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Message{}
	for _, msg := range m.msgs {
		if (msg.SenderUsername == a && msg.ReceiverUsername == b) || (msg.SenderUsername == b && msg.ReceiverUsername == a) {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type directory map[string]bool

func (d directory) Exists(_ context.Context, username string) (bool, error) {
	return d[username], nil
}

type published struct {
	channel string
	payload []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	got  []published
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, ch string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.got = append(p.got, published{channel: ch, payload: payload})
	return nil
}
