package messenger

import (
	"context"
	"errors"
	"sync"

	"devnet/internal/chat"
	"devnet/internal/query"

	"go.uber.org/zap"
)

// State is what the chat view currently shows.
type State int

const (
	StateUnauthenticated State = iota
	StateNoPartners
	StateNoSelection
	StateChat
)

// Placeholder texts rendered in place of a conversation.
const (
	TextUnauthenticated   = "You need to sign in."
	TextNoPartners        = "Follow someone to msg them."
	TextNoSelection       = "Select a chat to view."
	TextEmptyConversation = "Start sending msgs now."
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateNoPartners:
		return "no-partners"
	case StateNoSelection:
		return "no-selection"
	case StateChat:
		return "chat"
	default:
		return "unknown"
	}
}

// ChatView lists conversation partners and drives the selected conversation.
type ChatView struct {
	api   API
	cache ChatCache
	log   *zap.Logger

	rec   *Reconciler
	comp  *Composer
	input *Input

	mu       sync.Mutex
	partners []string
}

// NewChatView builds the view. A nil id yields a view that renders the
// sign-in prompt and refuses every operation.
func NewChatView(id *Identity, a API, cache ChatCache, rt Subscriber, notify Notifier, log *zap.Logger, opts ...ComposerOption) *ChatView {
	v := &ChatView{api: a, cache: cache, log: log}
	if id == nil || id.Username == "" {
		return v
	}
	v.rec = NewReconciler(*id, cache, rt, log)
	v.comp = NewComposer(*id, cache, a, notify, log, opts...)
	v.input = NewInput(v.Send)
	return v
}

func (v *ChatView) authenticated() bool { return v.rec != nil }

// Load fetches the partner list from the user directory.
func (v *ChatView) Load(ctx context.Context) error {
	if !v.authenticated() {
		return ErrUnauthenticated
	}
	users, err := v.api.ListUsers(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}

	v.mu.Lock()
	v.partners = names
	v.mu.Unlock()
	return nil
}

func (v *ChatView) Partners() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.partners...)
}

func (v *ChatView) State() State {
	if !v.authenticated() {
		return StateUnauthenticated
	}
	if v.rec.Active() != "" {
		return StateChat
	}
	v.mu.Lock()
	n := len(v.partners)
	v.mu.Unlock()
	if n == 0 {
		return StateNoPartners
	}
	return StateNoSelection
}

// Placeholder returns the text shown instead of messages, or "" when there
// are messages to show.
func (v *ChatView) Placeholder() string {
	switch v.State() {
	case StateUnauthenticated:
		return TextUnauthenticated
	case StateNoPartners:
		return TextNoPartners
	case StateNoSelection:
		return TextNoSelection
	}
	if len(v.Messages()) == 0 {
		return TextEmptyConversation
	}
	return ""
}

// Selected returns the partner of the open conversation.
func (v *ChatView) Selected() string {
	if !v.authenticated() {
		return ""
	}
	return v.rec.Active()
}

// Select opens the conversation with partner and loads its history.
func (v *ChatView) Select(ctx context.Context, partner string) error {
	if !v.authenticated() {
		return ErrUnauthenticated
	}
	partner, err := NormalizePartner(partner)
	if err != nil {
		return err
	}
	key := ChatKey(partner)
	v.cache.Register(key, func(ctx context.Context) ([]chat.Message, error) {
		return v.api.GetChat(ctx, partner)
	})
	if err := v.rec.Select(ctx, partner); err != nil {
		return err
	}
	err = v.cache.Invalidate(ctx, key)
	if errors.Is(err, query.ErrCanceled) {
		return nil
	}
	return err
}

// Deselect closes the open conversation.
func (v *ChatView) Deselect(ctx context.Context) error {
	if !v.authenticated() {
		return ErrUnauthenticated
	}
	return v.rec.Deselect(ctx)
}

// Messages renders the open conversation.
func (v *ChatView) Messages() []Entry {
	partner := v.Selected()
	if partner == "" {
		return nil
	}
	return v.rec.View(partner)
}

// Input returns the compose field, nil when signed out.
func (v *ChatView) Input() *Input { return v.input }

// Send sends text to the selected partner.
func (v *ChatView) Send(ctx context.Context, text string) error {
	if !v.authenticated() {
		return ErrUnauthenticated
	}
	partner := v.rec.Active()
	if partner == "" {
		return ErrNoSelection
	}
	return v.comp.Send(ctx, partner, text)
}

// Resync refetches the open conversation. Hook it to transport reconnects.
func (v *ChatView) Resync(ctx context.Context) error {
	if !v.authenticated() {
		return ErrUnauthenticated
	}
	return v.rec.Resync(ctx)
}

// Reconciler exposes the view's reconciler, nil when signed out.
func (v *ChatView) Reconciler() *Reconciler { return v.rec }
