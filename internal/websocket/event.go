package websocket

import (
	"encoding/json"

	"github.com/google/uuid"
)

type EventType string

// Client to server.
const (
	EventJoinRoom    EventType = "joinRoom"
	EventLeaveRoom   EventType = "leaveRoom"
	EventTypingStart EventType = "typingStart"
	EventTypingStop  EventType = "typingStop"
	EventSendMessage EventType = "sendMessage"
)

// Server to client.
const (
	EventPresenceUpdate EventType = "presenceUpdate"
	EventTypingUpdate   EventType = "typingUpdate"
	EventNewMessage     EventType = "newMessage"
	EventMessageAck     EventType = "messageAck"

	EventRequestCreated   EventType = "requestCreated"
	EventRequestAccepted  EventType = "requestAccepted"
	EventRequestRejected  EventType = "requestRejected"
	EventRequestCancelled EventType = "requestCancelled"
	EventChatCreated      EventType = "chatCreated"
	EventChatUpdated      EventType = "chatUpdated"

	EventError EventType = "error"
)

type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
	Meta    *EventMeta  `json:"meta,omitempty"`
}

type EventMeta struct {
	Timestamp int64     `json:"timestamp"`
	ChatID    uuid.UUID `json:"chat_id,omitzero"`
	SenderID  uuid.UUID `json:"sender_id,omitzero"`
	ClientRef string    `json:"client_ref,omitempty"`
}

// ClientEvent is a frame received from a connection.
type ClientEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Meta    ClientEventMeta `json:"meta"`
}

type ClientEventMeta struct {
	ChatID    uuid.UUID `json:"chat_id"`
	ClientRef string    `json:"client_ref,omitempty"`
}

type SendMessagePayload struct {
	Content string `json:"content"`
}

type PresencePayload struct {
	ChatID      uuid.UUID   `json:"chat_id"`
	OnlineUsers []uuid.UUID `json:"online_users"`
}

type TypingPayload struct {
	ChatID      uuid.UUID   `json:"chat_id"`
	TypingUsers []uuid.UUID `json:"typing_users"`
}

type ErrorPayload struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Event   EventType `json:"event,omitempty"`
}
