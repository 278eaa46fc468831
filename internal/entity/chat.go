package entity

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
)

type Chat struct {
	ID            uuid.UUID  `db:"id"`
	IsGroup       bool       `db:"is_group"`
	CreatorID     *uuid.UUID `db:"creator_id"`
	Name          *string    `db:"name"`
	Avatar        *string    `db:"avatar"`
	DirectPairKey *string    `db:"direct_pair_key"`
	LastSeq       int64      `db:"last_seq"`
	LastMessageAt *time.Time `db:"last_message_at"`
	CreatedAt     time.Time  `db:"created_at"`

	Members []ChatMember `db:"-"`
}

type ChatMember struct {
	ChatID   uuid.UUID  `db:"chat_id"`
	UserID   uuid.UUID  `db:"user_id"`
	Role     MemberRole `db:"role"`
	JoinedAt time.Time  `db:"joined_at"`
}

func (c *Chat) HasMember(userID uuid.UUID) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Chat) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// Clone returns a copy that does not share the Members backing array.
func (c Chat) Clone() Chat {
	members := make([]ChatMember, len(c.Members))
	copy(members, c.Members)
	c.Members = members
	return c
}
