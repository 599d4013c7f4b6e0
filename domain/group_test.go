package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_CanonicalName_Is_Symmetric(t *testing.T) {
	req := require.New(t)

	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"todd", "lisa"},
		{"alice", "alice"},
		{"Alice", "alice"}, // ordinal, not case-folded
		{"", "bob"},
	}

	for _, pair := range pairs {
		req.Equal(CanonicalName(pair[0], pair[1]), CanonicalName(pair[1], pair[0]))
	}
}

func Test_CanonicalName_Uses_Ordinal_Order(t *testing.T) {
	req := require.New(t)

	req.Equal("alice-bob", CanonicalName("bob", "alice"))
	req.Equal("alice-bob", CanonicalName("alice", "bob"))
	// Byte-wise comparison: uppercase sorts before lowercase
	req.Equal("Bob-alice", CanonicalName("alice", "Bob"))
}

func Test_Group_Add_Is_Idempotent_Per_Session(t *testing.T) {
	req := require.New(t)
	group := NewGroup("alice-bob")

	// When the same session joins twice
	req.True(group.Add(Connection{SessionID: "s1", Username: "alice"}))
	req.False(group.Add(Connection{SessionID: "s1", Username: "alice"}))

	// Then only one connection is kept
	req.Len(group.Connections, 1)
}

func Test_Group_IsJoined_With_Multiple_Sessions(t *testing.T) {
	req := require.New(t)
	group := NewGroup("alice-bob")

	// Given bob holds two sessions and alice none
	group.Add(Connection{SessionID: "s1", Username: "bob"})
	group.Add(Connection{SessionID: "s2", Username: "bob"})

	// Then any live session of a user counts as joined
	req.True(group.IsJoined("bob"))
	req.False(group.IsJoined("alice"))

	// When one of bob's sessions leaves, he is still joined
	req.True(group.Remove("s1"))
	req.True(group.IsJoined("bob"))

	// When the last one leaves, he is not
	req.True(group.Remove("s2"))
	req.False(group.IsJoined("bob"))
}

func Test_Group_Remove_Unknown_Session(t *testing.T) {
	req := require.New(t)
	group := NewGroup("alice-bob")
	group.Add(Connection{SessionID: "s1", Username: "alice"})

	req.False(group.Remove("unknown"))
	req.Len(group.Connections, 1)
}
