package model

import "github.com/google/uuid"

const (
	RelationshipNone      = "none"
	RelationshipPending   = "pending"
	RelationshipConnected = "connected"

	SendResultRequest = "request"
	SendResultChat    = "chat"
)

type SendRequestRequest struct {
	TargetUserID uuid.UUID `json:"target_user_id" validate:"required"`
}

type RequestResponse struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	CreatedAt  string    `json:"created_at"`
}

// IncomingRequestResponse decorates a pending request with the counterpart's
// profile. Sender is set for incoming lists, Receiver for outgoing ones.
type IncomingRequestResponse struct {
	RequestResponse
	Sender   *UserSummary `json:"sender,omitempty"`
	Receiver *UserSummary `json:"receiver,omitempty"`
}

// SendRequestResponse is either a new pending request or, when the target had
// already asked for us, the chat created by the implicit accept.
type SendRequestResponse struct {
	Kind    string           `json:"kind"`
	Request *RequestResponse `json:"request,omitempty"`
	Chat    *ChatResponse    `json:"chat,omitempty"`
}

type RelationshipResponse struct {
	Status    string     `json:"status"`
	RequestID *uuid.UUID `json:"request_id,omitempty"`
	SenderID  *uuid.UUID `json:"sender_id,omitempty"`
	ChatID    *uuid.UUID `json:"chat_id,omitempty"`
}
