package helper

import (
	"CollabChatAPI/internal/entity"
	"CollabChatAPI/internal/model"
)

func ToMessageResponse(msg *entity.Message, sender *model.UserSummary) *model.MessageResponse {
	if msg == nil {
		return nil
	}

	return &model.MessageResponse{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Sender:    sender,
		Seq:       msg.Seq,
		Content:   msg.Content,
		CreatedAt: FormatTime(msg.CreatedAt),
	}
}
