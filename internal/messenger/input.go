package messenger

import (
	"context"
	"sync"
)

// KeyEnter submits the input.
const KeyEnter = "Enter"

// Input is the compose field.
type Input struct {
	mu   sync.Mutex
	text string
	send func(ctx context.Context, text string) error
}

func NewInput(send func(ctx context.Context, text string) error) *Input {
	return &Input{send: send}
}

// Type appends s to the field.
func (in *Input) Type(s string) {
	in.mu.Lock()
	in.text += s
	in.mu.Unlock()
}

func (in *Input) Text() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.text
}

// Submit clears the field and sends what it held. Empty text is sent as is.
func (in *Input) Submit(ctx context.Context) error {
	in.mu.Lock()
	text := in.text
	in.text = ""
	in.mu.Unlock()
	return in.send(ctx, text)
}

// Key handles a key press. Only KeyEnter does anything.
func (in *Input) Key(ctx context.Context, key string) error {
	if key != KeyEnter {
		return nil
	}
	return in.Submit(ctx)
}
