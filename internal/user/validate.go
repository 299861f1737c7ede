package user

import (
	"strings"

	"devnet/internal/channel"
)

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername checks an already normalized username. Usernames share
// the realtime topic charset, so they never contain the '_' separator.
func ValidateUsername(s string) error {
	if !channel.ValidName(s) {
		return ErrInvalidUsername
	}
	return nil
}
