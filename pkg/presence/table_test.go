package presence

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectLookupDisconnect(t *testing.T) {
	tbl := NewTable[int]()

	_, replaced := tbl.Connect("alice", 1)
	assert.False(t, replaced)
	tbl.Connect("bob", 2)

	h, ok := tbl.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, 1, h)
	assert.Equal(t, []string{"alice", "bob"}, tbl.Online())

	user, ok := tbl.Disconnect(1)
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	_, ok = tbl.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, 1, tbl.Len())
}

func TestDuplicateDisconnectIsNoop(t *testing.T) {
	tbl := NewTable[int]()
	tbl.Connect("alice", 1)

	_, ok := tbl.Disconnect(1)
	require.True(t, ok)
	_, ok = tbl.Disconnect(1)
	assert.False(t, ok)
	_, ok = tbl.Disconnect(42)
	assert.False(t, ok)
}

func TestReconnectReplacesHandle(t *testing.T) {
	tbl := NewTable[int]()
	tbl.Connect("alice", 1)

	prev, replaced := tbl.Connect("alice", 2)
	require.True(t, replaced)
	assert.Equal(t, 1, prev)

	// the old handle's late disconnect must not evict the new one
	_, ok := tbl.Disconnect(1)
	assert.False(t, ok)
	h, ok := tbl.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, 2, h)
}

func TestSameHandleReconnectIsIdempotent(t *testing.T) {
	tbl := NewTable[int]()
	tbl.Connect("alice", 1)
	_, replaced := tbl.Connect("alice", 1)
	assert.False(t, replaced)
	assert.Equal(t, 1, tbl.Len())
}

func TestHandleSwitchingUser(t *testing.T) {
	tbl := NewTable[int]()
	tbl.Connect("alice", 1)
	tbl.Connect("bob", 1)

	_, ok := tbl.Lookup("alice")
	assert.False(t, ok)
	u, ok := tbl.UserOf(1)
	require.True(t, ok)
	assert.Equal(t, "bob", u)
}

// At most one entry per user and the two maps stay mirror images under any
// sequence of connects and disconnects.
func TestRandomSequencesKeepMapsConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	users := []string{"a", "b", "c", "d"}
	tbl := NewTable[int]()

	for i := 0; i < 5000; i++ {
		h := rng.Intn(8)
		if rng.Intn(3) == 0 {
			tbl.Disconnect(h)
		} else {
			tbl.Connect(users[rng.Intn(len(users))], h)
		}

		require.Equal(t, len(tbl.byUser), len(tbl.byConn))
		for u, h := range tbl.byUser {
			require.Equal(t, u, tbl.byConn[h])
		}
	}
}
