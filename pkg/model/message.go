package model

import "time"

// DeletedText replaces the body of a soft-deleted message.
const DeletedText = "This message was deleted"

type Message struct {
	ID             int64     `json:"id,string"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	AttachmentURL  string    `json:"attachment_url,omitempty"`
	ReplyTo        int64     `json:"reply_to,string,omitempty"`
	ReadBy         []string  `json:"read_by"`
	Deleted        bool      `json:"deleted"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReadByUser reports whether userID has acknowledged the message.
func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// UnreadFor reports whether the message counts towards userID's unread total:
// authored by someone else and not yet read by userID.
func (m *Message) UnreadFor(userID string) bool {
	return m.SenderID != userID && !m.ReadByUser(userID)
}

// MessageView is a message with its sender profile resolved.
type MessageView struct {
	Message
	Sender UserSummary `json:"sender"`
}

type UserSummary struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Conversation is one participant's view of a two-party thread.
type Conversation struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	OtherUser     UserSummary `json:"other_user"`
	LastMessageID int64       `json:"last_message_id,string,omitempty"`
	LastMessage   *Message    `json:"last_message,omitempty"`
	LastUpdated   time.Time   `json:"last_updated"`
	UnreadCount   int64       `json:"unread_count"`
}
