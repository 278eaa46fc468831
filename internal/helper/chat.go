package helper

import (
	"CollabChatAPI/internal/entity"
	"CollabChatAPI/internal/model"
	"time"

	"github.com/google/uuid"
)

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// MapChatToResponse renders c from the point of view of viewerID. Direct chats
// take their name and avatar from the other member.
func MapChatToResponse(viewerID uuid.UUID, c *entity.Chat, users map[uuid.UUID]model.UserSummary) *model.ChatResponse {
	if c == nil {
		return nil
	}

	var name, avatar string
	if c.IsGroup {
		if c.Name != nil {
			name = *c.Name
		}
		if c.Avatar != nil {
			avatar = *c.Avatar
		}
	} else {
		for _, m := range c.Members {
			if m.UserID == viewerID {
				continue
			}
			if u, ok := users[m.UserID]; ok {
				name = u.DisplayName
				avatar = u.AvatarURL
			}
		}
	}

	members := make([]model.ChatMemberResponse, 0, len(c.Members))
	for _, m := range c.Members {
		u := users[m.UserID]
		members = append(members, model.ChatMemberResponse{
			UserID:      m.UserID,
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
			Role:        string(m.Role),
			JoinedAt:    FormatTime(m.JoinedAt),
		})
	}

	var lastMessageAt *string
	if c.LastMessageAt != nil {
		t := FormatTime(*c.LastMessageAt)
		lastMessageAt = &t
	}

	return &model.ChatResponse{
		ID:            c.ID,
		IsGroup:       c.IsGroup,
		CreatorID:     c.CreatorID,
		Name:          name,
		Avatar:        avatar,
		Members:       members,
		LastMessageAt: lastMessageAt,
		CreatedAt:     FormatTime(c.CreatedAt),
	}
}

func ToRequestResponse(r *entity.Request) *model.RequestResponse {
	if r == nil {
		return nil
	}
	return &model.RequestResponse{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		CreatedAt:  FormatTime(r.CreatedAt),
	}
}
