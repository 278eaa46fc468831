package model

import "github.com/google/uuid"

// UserDTO is the authenticated caller attached to the request context.
type UserDTO struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Avatar   string    `json:"avatar"`
}

type UserSummary struct {
	ID          uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}
