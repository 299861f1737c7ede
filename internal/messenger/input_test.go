package messenger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitClearsBeforeSending(t *testing.T) {
	var in *Input
	var sent []string
	in = NewInput(func(_ context.Context, text string) error {
		assert.Empty(t, in.Text())
		sent = append(sent, text)
		return errors.New("rejected")
	})

	in.Type("he")
	in.Type("llo")
	assert.Equal(t, "hello", in.Text())

	require.Error(t, in.Submit(context.Background()))
	assert.Empty(t, in.Text())
	assert.Equal(t, []string{"hello"}, sent)
}

func TestEnterSubmits(t *testing.T) {
	var sent []string
	in := NewInput(func(_ context.Context, text string) error {
		sent = append(sent, text)
		return nil
	})

	in.Type("a")
	require.NoError(t, in.Key(context.Background(), "Shift"))
	assert.Equal(t, "a", in.Text())

	require.NoError(t, in.Key(context.Background(), KeyEnter))
	require.NoError(t, in.Key(context.Background(), KeyEnter))
	assert.Equal(t, []string{"a", ""}, sent)
}
