package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"devnet/internal/channel"
	"devnet/internal/metrics"

	"go.uber.org/zap"
)

const (
	maxMessageChars = 4000
	historyLimit    = 200
	publishTimeout  = 5 * time.Second
)

// MessageStore persists messages. *Repository implements it.
type MessageStore interface {
	SaveMessage(ctx context.Context, sender, receiver, content string) (*Message, error)
	GetChat(ctx context.Context, a, b string, limit int) ([]Message, error)
}

// Directory answers whether a username is registered.
type Directory interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// Publisher hands realtime events to the broker.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Service struct {
	repo    MessageStore
	users   Directory
	pub     Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewService(repo MessageStore, users Directory, pub Publisher, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{repo: repo, users: users, pub: pub, metrics: m, log: log}
}

// GetChat returns the conversation between me and other, oldest first.
func (s *Service) GetChat(ctx context.Context, me, other string) ([]Message, error) {
	return s.repo.GetChat(ctx, me, strings.ToLower(strings.TrimSpace(other)), historyLimit)
}

// NewMsg persists a message from sender and pushes it on the pair's channel.
// A failed push is logged but does not fail the send: the message is stored
// and the receiver picks it up on its next refetch.
func (s *Service) NewMsg(ctx context.Context, sender string, req NewMsgRequest) (*Message, error) {
	content := strings.TrimSpace(req.MsgContent)
	receiver := strings.ToLower(strings.TrimSpace(req.MsgReciever))

	if content == "" {
		s.metrics.MessagesRejected.WithLabelValues("empty").Inc()
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > maxMessageChars {
		s.metrics.MessagesRejected.WithLabelValues("too_long").Inc()
		return nil, ErrMessageTooLong
	}

	ok, err := s.users.Exists(ctx, receiver)
	if err != nil {
		return nil, fmt.Errorf("check receiver: %w", err)
	}
	if !ok {
		s.metrics.MessagesRejected.WithLabelValues("unknown_receiver").Inc()
		return nil, ErrUnknownReceiver
	}

	msg, err := s.repo.SaveMessage(ctx, sender, receiver, content)
	if err != nil {
		return nil, err
	}
	s.metrics.MessagesSent.Inc()

	s.publish(ctx, msg)
	return msg, nil
}

func (s *Service) publish(ctx context.Context, msg *Message) {
	topic := channel.EventChannel(msg.SenderUsername, msg.ReceiverUsername)

	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("encode message event", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Event{Channel: topic, Event: channel.MessageEvent, Data: data})
	if err != nil {
		s.log.Error("encode message event", zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(pubCtx, topic, payload); err != nil {
		s.metrics.EventsPublished.WithLabelValues("error").Inc()
		s.log.Warn("publish message event", zap.String("channel", topic), zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	s.metrics.EventsPublished.WithLabelValues("ok").Inc()
}
