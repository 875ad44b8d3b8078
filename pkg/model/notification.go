package model

import "time"

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationMention:
		return true
	}
	return false
}

// NeedsPost reports whether notifications of this type must reference a post.
func (t NotificationType) NeedsPost() bool {
	return t != NotificationFollow
}

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	SenderID    string           `json:"sender_id"`
	Type        NotificationType `json:"type"`
	PostID      string           `json:"post_id,omitempty"`
	CommentID   string           `json:"comment_id,omitempty"`
	Message     string           `json:"message"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationTrigger is the request to notify a user, as carried on the
// trigger topic before deduplication and persistence.
type NotificationTrigger struct {
	RecipientID string           `json:"recipient_id"`
	SenderID    string           `json:"sender_id"`
	Type        NotificationType `json:"type"`
	PostID      string           `json:"post_id,omitempty"`
	CommentID   string           `json:"comment_id,omitempty"`
	Message     string           `json:"message,omitempty"`
}
