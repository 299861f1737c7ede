// Package broker carries realtime events between server instances.
//
// Every instance publishes the events it produces and subscribes to all
// message channels, so a websocket client connected to any instance sees
// events produced on any other.
package broker

import (
	"context"
	"errors"
)

// Handler receives one event. It runs on the broker's delivery goroutine.
type Handler func(channel string, payload []byte)

// Broker is a minimal publish/subscribe transport.
type Broker interface {
	// Publish sends payload on channel.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers every message-channel event to fn until ctx is done.
	Subscribe(ctx context.Context, fn Handler) error
	Close() error
}

var ErrClosed = errors.New("broker closed")
