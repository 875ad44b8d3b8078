package chat

import (
	"strings"

	"github.com/mahaj/lionsphere/pkg/apperr"
)

// Separator joins the two participant ids of a conversation id.
const Separator = "_"

func ValidUserID(id string) bool {
	return id != "" && !strings.Contains(id, Separator)
}

// ConversationID returns the canonical id of the conversation between a and
// b: the two ids sorted and joined, so both sides derive the same value.
func ConversationID(a, b string) (string, error) {
	if !ValidUserID(a) || !ValidUserID(b) {
		return "", apperr.ErrInvalidUserID
	}
	if a == b {
		return "", apperr.ErrSelfMessage
	}
	if a > b {
		a, b = b, a
	}
	return a + Separator + b, nil
}

// Participants splits a conversation id into its two user ids.
func Participants(conversationID string) (string, string, error) {
	a, b, ok := strings.Cut(conversationID, Separator)
	if !ok || !ValidUserID(a) || !ValidUserID(b) || a >= b {
		return "", "", apperr.ErrInvalidConversationID
	}
	return a, b, nil
}

// OtherParticipant returns the participant of conversationID that is not
// userID. It fails when userID is not part of the conversation.
func OtherParticipant(conversationID, userID string) (string, error) {
	a, b, err := Participants(conversationID)
	if err != nil {
		return "", err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", apperr.ErrNotParticipant
}
