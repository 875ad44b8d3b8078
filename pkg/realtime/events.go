package realtime

import (
	"encoding/json"
	"time"
)

type EventName string

const (
	EventIdentify     EventName = "identify"
	EventOnlineUsers  EventName = "online_users"
	EventStatus       EventName = "status"
	EventSend         EventName = "send"
	EventReceive      EventName = "receive"
	EventSent         EventName = "sent"
	EventTyping       EventName = "typing"
	EventStopTyping   EventName = "stop_typing"
	EventNotification EventName = "notification"
	EventError        EventName = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Envelope is the frame of every websocket message in both directions.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type IdentifyData struct {
	UserID string `json:"user_id"`
}

type OnlineUsersData struct {
	Users []string `json:"users"`
}

type StatusData struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type SendData struct {
	RecipientID    string `json:"recipient_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type ReceiveData struct {
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// SentData acknowledges a relay attempt. It does not imply the message was
// stored.
type SentData struct {
	Success        bool      `json:"success"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

type TypingData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// Encode frames data under event.
func Encode(event EventName, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
