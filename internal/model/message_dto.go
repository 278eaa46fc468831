package model

import "github.com/google/uuid"

type SendMessageRequest struct {
	ChatID    uuid.UUID `json:"chat_id" validate:"required"`
	Content   string    `json:"content" validate:"required,max=4000"`
	ClientRef string    `json:"client_ref,omitempty" validate:"max=64"`
}

type GetMessagesRequest struct {
	ChatID   uuid.UUID `validate:"required"`
	Page     int       `validate:"gte=1"`
	PageSize int       `validate:"gte=0,max=50"`
}

type MessageResponse struct {
	ID        uuid.UUID    `json:"id"`
	ChatID    uuid.UUID    `json:"chat_id"`
	SenderID  uuid.UUID    `json:"sender_id"`
	Sender    *UserSummary `json:"sender,omitempty"`
	Seq       int64        `json:"seq"`
	Content   string       `json:"content"`
	CreatedAt string       `json:"created_at"`
	ClientRef string       `json:"client_ref,omitempty"`
}

// MessagePage is one newest-first page of chat history.
type MessagePage struct {
	Messages    []MessageResponse `json:"messages"`
	Page        int               `json:"page"`
	PageSize    int               `json:"page_size"`
	HasNextPage bool              `json:"has_next_page"`
}
