// Package channel names the realtime topics that carry direct messages.
//
// A conversation between two users always maps to the same topic, no matter
// which participant computes it.
package channel

import (
	"regexp"
	"strings"
)

const (
	// Separator joins the two usernames. Usernames may not contain it.
	Separator = "_"

	// MessagePrefix prefixes every direct-message topic.
	MessagePrefix = "newMsg" + Separator

	// MessageEvent is the event name published on message topics.
	MessageEvent = "msgEvent"
)

// namePattern is the username charset. It excludes Separator and upper case.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,29}$`)

// ValidName reports whether name may appear in a topic.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Canonical returns the order-independent name for the pair (a, b).
func Canonical(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// EventChannel returns the realtime topic for the conversation between a and b.
func EventChannel(a, b string) string {
	return MessagePrefix + Canonical(a, b)
}

// Participants splits a topic produced by EventChannel back into its two
// usernames (in canonical order).
func Participants(topic string) (a, b string, ok bool) {
	rest, found := strings.CutPrefix(topic, MessagePrefix)
	if !found {
		return "", "", false
	}
	a, b, found = strings.Cut(rest, Separator)
	if !found || b < a || !ValidName(a) || !ValidName(b) {
		return "", "", false
	}
	return a, b, true
}

// Includes reports whether username is one of the topic's participants.
func Includes(topic, username string) bool {
	a, b, ok := Participants(topic)
	return ok && (a == username || b == username)
}
