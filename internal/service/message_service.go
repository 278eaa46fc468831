package service

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/entity"
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/repository"
	"CollabChatAPI/internal/websocket"
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type MessageService struct {
	cfg       *config.AppConfig
	repo      *repository.Repository
	validator *validator.Validate
	directory adapter.IdentityDirectory
	wsHub     *websocket.Hub
	metrics   *Metrics
}

func NewMessageService(cfg *config.AppConfig, repo *repository.Repository, validator *validator.Validate, directory adapter.IdentityDirectory, wsHub *websocket.Hub, metrics *Metrics) *MessageService {
	return &MessageService{
		cfg:       cfg,
		repo:      repo,
		validator: validator,
		directory: directory,
		wsHub:     wsHub,
		metrics:   metrics,
	}
}

// SendMessage appends a message to the chat and pushes it to the room. origin,
// when set, is the connection that sent it and is skipped by the broadcast.
func (s *MessageService) SendMessage(ctx context.Context, userID uuid.UUID, req model.SendMessageRequest, origin *websocket.Client) (*model.MessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", userID)
		return nil, helper.NewBadRequestError("")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, helper.NewBadRequestError("Message content cannot be empty")
	}

	msg := &entity.Message{
		ChatID:   req.ChatID,
		SenderID: userID,
		Content:  req.Content,
	}
	err := s.repo.Store.Atomic(ctx, func(tx repository.Registry) error {
		isMember, err := tx.Chats().IsMember(ctx, req.ChatID, userID)
		if err != nil {
			return err
		}
		if !isMember {
			return helper.NewForbiddenError("You are not a member of this chat")
		}
		return tx.Messages().Append(ctx, msg)
	})
	if err != nil {
		return nil, mapStoreError(err, "send_message", s.metrics)
	}
	s.metrics.recordMessage()

	users := resolveUsers(ctx, s.directory, []uuid.UUID{userID})
	resp := helper.ToMessageResponse(msg, summaryPtr(users, userID))
	resp.ClientRef = req.ClientRef

	s.wsHub.SetTyping(req.ChatID, userID, false)
	s.wsHub.BroadcastToChat(req.ChatID, websocket.Event{
		Type:    websocket.EventNewMessage,
		Payload: resp,
		Meta: &websocket.EventMeta{
			Timestamp: time.Now().UnixMilli(),
			ChatID:    req.ChatID,
			SenderID:  userID,
			ClientRef: req.ClientRef,
		},
	}, origin)

	return resp, nil
}

// GetMessages returns one page of history, newest first. Page 1 holds the most
// recent messages.
func (s *MessageService) GetMessages(ctx context.Context, userID uuid.UUID, req model.GetMessagesRequest) (*model.MessagePage, error) {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", userID)
		return nil, helper.NewBadRequestError("")
	}

	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = s.cfg.MessagePageSize
	}
	if pageSize > s.cfg.MessageMaxPageSize {
		pageSize = s.cfg.MessageMaxPageSize
	}

	isMember, err := s.repo.Store.Chats().IsMember(ctx, req.ChatID, userID)
	if err != nil {
		return nil, mapStoreError(err, "get_messages", s.metrics)
	}
	if !isMember {
		return nil, helper.NewForbiddenError("You are not a member of this chat")
	}

	// A page whose offset does not fit an int lies past any history.
	if req.Page-1 > (math.MaxInt-1)/pageSize {
		return &model.MessagePage{
			Messages: []model.MessageResponse{},
			Page:     req.Page,
			PageSize: pageSize,
		}, nil
	}

	offset := (req.Page - 1) * pageSize
	rows, err := s.repo.Store.Messages().ListPage(ctx, req.ChatID, offset, pageSize+1)
	if err != nil {
		return nil, mapStoreError(err, "get_messages", s.metrics)
	}

	hasNextPage := len(rows) > pageSize
	if hasNextPage {
		rows = rows[:pageSize]
	}

	senderIDs := make([]uuid.UUID, 0, len(rows))
	for _, m := range rows {
		senderIDs = append(senderIDs, m.SenderID)
	}
	users := resolveUsers(ctx, s.directory, senderIDs)

	messages := make([]model.MessageResponse, 0, len(rows))
	for i := range rows {
		messages = append(messages, *helper.ToMessageResponse(&rows[i], summaryPtr(users, rows[i].SenderID)))
	}

	return &model.MessagePage{
		Messages:    messages,
		Page:        req.Page,
		PageSize:    pageSize,
		HasNextPage: hasNextPage,
	}, nil
}
