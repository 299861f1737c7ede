package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"zed", "a"},
		{"same", "same"},
		{"dev-1", "dev.2"},
	}
	for _, p := range pairs {
		assert.Equal(t, Canonical(p[0], p[1]), Canonical(p[1], p[0]), "pair %v", p)
	}
}

func TestCanonicalOrdersLexicographically(t *testing.T) {
	assert.Equal(t, "alice_bob", Canonical("bob", "alice"))
	assert.Equal(t, "newMsg_alice_bob", EventChannel("alice", "bob"))
}

func TestCanonicalDistinctPairs(t *testing.T) {
	seen := map[string][2]string{}
	users := []string{"a", "ab", "b", "ba", "a.b", "a-b"}
	for i, u := range users {
		for _, v := range users[i:] {
			name := Canonical(u, v)
			if prev, ok := seen[name]; ok {
				t.Fatalf("collision: %v and %v both map to %q", prev, [2]string{u, v}, name)
			}
			seen[name] = [2]string{u, v}
		}
	}
}

func TestParticipants(t *testing.T) {
	a, b, ok := Participants(EventChannel("carol", "alice"))
	require.True(t, ok)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "carol", b)

	for _, bad := range []string{"", "alice_bob", "newMsg_", "newMsg_alice", "newMsg_bob_alice", "newMsg_a_b_c",
		"newMsg_Bob_alice", "newMsg__alice", "newMsg_alice_bob!", "newMsg_al ice_bob",
	} {
		_, _, ok := Participants(bad)
		assert.False(t, ok, "topic %q", bad)
	}
}

func TestIncludes(t *testing.T) {
	topic := EventChannel("alice", "bob")
	assert.True(t, Includes(topic, "alice"))
	assert.True(t, Includes(topic, "bob"))
	assert.False(t, Includes(topic, "carol"))
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"alice", "dev-1", "dev.2", "a0"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", "a", "Bob", "bad_name", ".alice", "al ice"} {
		assert.False(t, ValidName(name), name)
	}
}
