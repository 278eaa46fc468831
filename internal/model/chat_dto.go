package model

import "github.com/google/uuid"

type CreateGroupChatRequest struct {
	Name      string      `json:"name" validate:"required,min=1,max=100"`
	Avatar    string      `json:"avatar" validate:"omitempty,url"`
	MemberIDs []uuid.UUID `json:"member_ids" validate:"max=100"`
}

type AddGroupMembersRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" validate:"required,min=1,max=100"`
}

type ChatMemberResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	Role        string    `json:"role"`
	JoinedAt    string    `json:"joined_at"`
}

type ChatResponse struct {
	ID        uuid.UUID  `json:"id"`
	IsGroup   bool       `json:"is_group"`
	CreatorID *uuid.UUID `json:"creator_id,omitempty"`

	// Group name, or the other member's display name for direct chats
	Name string `json:"name"`

	// Group avatar, or the other member's avatar for direct chats
	Avatar string `json:"avatar"`

	Members       []ChatMemberResponse `json:"members"`
	LastMessageAt *string              `json:"last_message_at,omitempty"`
	CreatedAt     string               `json:"created_at"`
}
