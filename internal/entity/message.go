package entity

import (
	"time"

	"github.com/google/uuid"
)

// Message is an append-only chat entry. Seq strictly increases per chat.
type Message struct {
	ID        uuid.UUID `db:"id"`
	ChatID    uuid.UUID `db:"chat_id"`
	SenderID  uuid.UUID `db:"sender_id"`
	Seq       int64     `db:"seq"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
