package entity

import (
	"time"

	"github.com/google/uuid"
)

// Request is a pending, one-directional proposal to connect two users.
// It is deleted when accepted, rejected, cancelled or expired.
type Request struct {
	ID         uuid.UUID `db:"id"`
	SenderID   uuid.UUID `db:"sender_id"`
	ReceiverID uuid.UUID `db:"receiver_id"`
	PairKey    string    `db:"pair_key"`
	CreatedAt  time.Time `db:"created_at"`
}

// Counterpart returns the other party of the request relative to userID.
func (r *Request) Counterpart(userID uuid.UUID) uuid.UUID {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}
