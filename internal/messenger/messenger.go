// Package messenger is the client-side chat core: it keeps one conversation
// subscribed to realtime events, folds those events and optimistic sends
// into the query cache, and renders the result.
package messenger

import (
	"context"
	"errors"

	"devnet/internal/channel"
	"devnet/internal/chat"
	"devnet/internal/query"
	"devnet/internal/realtime"
	"devnet/internal/user"
)

var (
	// ErrUnauthenticated is returned by every operation of a view built
	// without an identity.
	ErrUnauthenticated = errors.New("messenger: not signed in")
	// ErrNoSelection is returned when sending with no conversation selected.
	ErrNoSelection = errors.New("messenger: no conversation selected")
	// ErrInvalidPartner is returned when selecting a name that is not a
	// valid username, including "".
	ErrInvalidPartner = errors.New("messenger: invalid partner username")
)

// Identity is the signed-in user, passed explicitly to every component.
type Identity struct {
	Username string
}

// NormalizePartner maps a typed partner name onto the username the server
// stores and publishes under.
func NormalizePartner(name string) (string, error) {
	name = user.NormalizeUsername(name)
	if !channel.ValidName(name) {
		return "", ErrInvalidPartner
	}
	return name, nil
}

// ChatKey is the cache key holding the conversation with partner.
func ChatKey(partner string) string {
	return "chat.getChat:" + partner
}

// ChatCache is the part of query.Cache the chat core writes through.
type ChatCache interface {
	GetData(key string) ([]chat.Message, bool)
	SetData(key string, update func(old []chat.Message, ok bool) []chat.Message)
	Snapshot(key string) query.Snapshot[[]chat.Message]
	Restore(key string, s query.Snapshot[[]chat.Message])
	Cancel(key string)
	Register(key string, f query.Fetcher[[]chat.Message])
	Invalidate(ctx context.Context, key string) error
}

// Subscriber is the realtime surface the reconciler needs.
type Subscriber interface {
	Subscribe(ctx context.Context, name string) (*realtime.Channel, error)
	Unsubscribe(ctx context.Context, name string) error
	Unbind(b realtime.Binding)
}

// Sender performs the send mutation.
type Sender interface {
	NewMsg(ctx context.Context, content, receiver string) (*chat.Message, error)
}

// API is the remote surface used by the chat view.
type API interface {
	Sender
	ListUsers(ctx context.Context) ([]user.User, error)
	GetChat(ctx context.Context, other string) ([]chat.Message, error)
}

// Notifier shows a transient message to the user. It must not block.
type Notifier func(msg string)

var (
	_ ChatCache  = (*query.Cache[[]chat.Message])(nil)
	_ Subscriber = (*realtime.Manager)(nil)
)
