package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: "INFO", want: zapcore.InfoLevel},
		{in: "warn", want: zapcore.WarnLevel},
		{in: " warning ", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "verbose", want: zapcore.InfoLevel},
		{in: "", want: zapcore.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseLevel(tc.in), "ParseLevel(%q)", tc.in)
	}
}

func TestNewHonoursLevel(t *testing.T) {
	log, err := New("error")
	require.NoError(t, err)
	defer func() { _ = log.Sync() }()

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}
