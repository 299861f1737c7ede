package broker

import (
	"context"
	"fmt"

	"devnet/internal/channel"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis fans events out through Redis PUBLISH / PSUBSCRIBE.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	return &Redis{client: client, log: log}
}

// DialRedis connects and pings addr.
func DialRedis(ctx context.Context, addr string, log *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedis(client, log), nil
}

func (r *Redis) Publish(ctx context.Context, ch string, payload []byte) error {
	if err := r.client.Publish(ctx, ch, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ch, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, fn Handler) error {
	pubsub := r.client.PSubscribe(ctx, channel.MessagePrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	r.log.Info("redis subscription ready", zap.String("pattern", channel.MessagePrefix+"*"))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			fn(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
