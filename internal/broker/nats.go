package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// subjectPrefix namespaces realtime channels on a shared NATS server.
const subjectPrefix = "devnet."

// NATS fans events out through core NATS subjects `devnet.<channel>`.
// Usernames may contain '.', so the subscription uses the multi-token wildcard.
type NATS struct {
	nc  *nats.Conn
	log *zap.Logger
}

// DialNATS connects to url.
func DialNATS(url string, log *zap.Logger) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("devnet-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATS{nc: nc, log: log}, nil
}

func (n *NATS) Publish(_ context.Context, ch string, payload []byte) error {
	if err := n.nc.Publish(subject(ch), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", ch, err)
	}
	return nil
}

func (n *NATS) Subscribe(ctx context.Context, fn Handler) error {
	sub, err := n.nc.Subscribe(subjectPrefix+">", func(m *nats.Msg) {
		fn(strings.TrimPrefix(m.Subject, subjectPrefix), m.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := n.nc.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	n.log.Info("nats subscription ready", zap.String("subject", sub.Subject))

	<-ctx.Done()
	return ctx.Err()
}

func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}

func subject(ch string) string {
	return subjectPrefix + ch
}
