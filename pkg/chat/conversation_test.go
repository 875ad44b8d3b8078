package chat

import (
	"testing"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationIDIsCanonical(t *testing.T) {
	ab, err := ConversationID("alice", "bob")
	require.NoError(t, err)
	ba, err := ConversationID("bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice_bob", ab)
	assert.Equal(t, ab, ba)
}

func TestConversationIDRejects(t *testing.T) {
	_, err := ConversationID("alice", "alice")
	assert.ErrorIs(t, err, apperr.ErrSelfMessage)
	_, err = ConversationID("", "bob")
	assert.ErrorIs(t, err, apperr.ErrInvalidUserID)
	_, err = ConversationID("al_ice", "bob")
	assert.ErrorIs(t, err, apperr.ErrInvalidUserID)
}

func TestParticipants(t *testing.T) {
	a, b, err := Participants("alice_bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	for _, bad := range []string{"", "alice", "alice_", "_bob", "bob_alice", "a_b_c", "alice_alice"} {
		_, _, err := Participants(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidConversationID, bad)
	}
}

func TestOtherParticipant(t *testing.T) {
	other, err := OtherParticipant("alice_bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", other)

	other, err = OtherParticipant("alice_bob", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", other)

	_, err = OtherParticipant("alice_bob", "carol")
	assert.ErrorIs(t, err, apperr.ErrNotParticipant)
}
