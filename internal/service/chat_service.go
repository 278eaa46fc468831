package service

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/entity"
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/repository"
	"CollabChatAPI/internal/websocket"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ChatService struct {
	repo      *repository.Repository
	validator *validator.Validate
	directory adapter.IdentityDirectory
	wsHub     *websocket.Hub
	metrics   *Metrics
}

func NewChatService(repo *repository.Repository, validator *validator.Validate, directory adapter.IdentityDirectory, wsHub *websocket.Hub, metrics *Metrics) *ChatService {
	return &ChatService{
		repo:      repo,
		validator: validator,
		directory: directory,
		wsHub:     wsHub,
		metrics:   metrics,
	}
}

func (s *ChatService) ListChats(ctx context.Context, userID uuid.UUID) ([]model.ChatResponse, error) {
	chats, err := s.repo.Store.Chats().ListByMember(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "list_chats", s.metrics)
	}

	var ids []uuid.UUID
	for i := range chats {
		ids = append(ids, chats[i].MemberIDs()...)
	}
	users := resolveUsers(ctx, s.directory, ids)

	resp := make([]model.ChatResponse, 0, len(chats))
	for i := range chats {
		resp = append(resp, *helper.MapChatToResponse(userID, &chats[i], users))
	}
	return resp, nil
}

func (s *ChatService) GetChat(ctx context.Context, userID, chatID uuid.UUID) (*model.ChatResponse, error) {
	chat, err := s.repo.Store.Chats().GetByID(ctx, chatID)
	if err != nil {
		return nil, mapStoreError(err, "get_chat", s.metrics)
	}
	if !chat.HasMember(userID) {
		return nil, helper.NewForbiddenError("You are not a member of this chat")
	}

	users := resolveUsers(ctx, s.directory, chat.MemberIDs())
	return helper.MapChatToResponse(userID, chat, users), nil
}

func (s *ChatService) CreateGroupChat(ctx context.Context, userID uuid.UUID, req model.CreateGroupChatRequest) (*model.ChatResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", userID)
		return nil, helper.NewBadRequestError("")
	}

	memberIDs := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, id := range uniqueIDs(req.MemberIDs) {
		if id != userID {
			memberIDs = append(memberIDs, id)
		}
	}
	if err := s.ensureUsersExist(ctx, memberIDs); err != nil {
		return nil, err
	}

	chat := &entity.Chat{
		IsGroup:   true,
		CreatorID: &userID,
		Name:      &req.Name,
		Members:   []entity.ChatMember{{UserID: userID, Role: entity.RoleAdmin}},
	}
	if req.Avatar != "" {
		chat.Avatar = &req.Avatar
	}
	for _, id := range memberIDs {
		chat.Members = append(chat.Members, entity.ChatMember{UserID: id, Role: entity.RoleMember})
	}

	err := s.repo.Store.Atomic(ctx, func(tx repository.Registry) error {
		return tx.Chats().Create(ctx, chat)
	})
	if err != nil {
		return nil, mapStoreError(err, "create_group_chat", s.metrics)
	}

	allIDs := chat.MemberIDs()
	s.wsHub.AdmitUsers(chat.ID, allIDs...)

	users := resolveUsers(ctx, s.directory, allIDs)
	resp := helper.MapChatToResponse(userID, chat, users)
	for _, id := range allIDs {
		s.wsHub.BroadcastToUser(id, websocket.Event{
			Type:    websocket.EventChatCreated,
			Payload: resp,
			Meta:    &websocket.EventMeta{Timestamp: time.Now().UnixMilli(), ChatID: chat.ID, SenderID: userID},
		})
	}
	return resp, nil
}

// AddGroupMembers appends users to a group chat. Only group admins may add
// members; users who already belong are ignored.
func (s *ChatService) AddGroupMembers(ctx context.Context, userID, chatID uuid.UUID, req model.AddGroupMembersRequest) (*model.ChatResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", userID)
		return nil, helper.NewBadRequestError("")
	}

	newIDs := uniqueIDs(req.UserIDs)
	if err := s.ensureUsersExist(ctx, newIDs); err != nil {
		return nil, err
	}

	var chat *entity.Chat
	var added []entity.ChatMember
	err := s.repo.Store.Atomic(ctx, func(tx repository.Registry) error {
		current, err := tx.Chats().GetByID(ctx, chatID)
		if err != nil {
			return err
		}
		if !current.IsGroup {
			return helper.NewBadRequestError("Members can only be added to group chats")
		}
		if !isAdmin(current, userID) {
			return helper.NewForbiddenError("Only group admins can add members")
		}

		members := make([]entity.ChatMember, 0, len(newIDs))
		for _, id := range newIDs {
			members = append(members, entity.ChatMember{UserID: id, Role: entity.RoleMember})
		}
		added, err = tx.Chats().AddMembers(ctx, chatID, members)
		if err != nil {
			return err
		}

		chat, err = tx.Chats().GetByID(ctx, chatID)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err, "add_group_members", s.metrics)
	}

	users := resolveUsers(ctx, s.directory, chat.MemberIDs())
	resp := helper.MapChatToResponse(userID, chat, users)
	if len(added) == 0 {
		return resp, nil
	}

	addedIDs := make([]uuid.UUID, 0, len(added))
	for _, m := range added {
		addedIDs = append(addedIDs, m.UserID)
	}

	now := time.Now().UnixMilli()
	s.wsHub.BroadcastToChat(chatID, websocket.Event{
		Type:    websocket.EventChatUpdated,
		Payload: resp,
		Meta:    &websocket.EventMeta{Timestamp: now, ChatID: chatID, SenderID: userID},
	}, nil)
	s.wsHub.AdmitUsers(chatID, addedIDs...)
	for _, id := range addedIDs {
		s.wsHub.BroadcastToUser(id, websocket.Event{
			Type:    websocket.EventChatCreated,
			Payload: resp,
			Meta:    &websocket.EventMeta{Timestamp: now, ChatID: chatID, SenderID: userID},
		})
	}
	return resp, nil
}

func (s *ChatService) ensureUsersExist(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.directory.ResolveUsers(ctx, ids)
	if err != nil {
		slog.Error("Failed to resolve users", "error", err, "count", len(ids))
		return helper.NewServiceUnavailableError("")
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return helper.NewNotFoundError("One or more users not found")
		}
	}
	return nil
}

func isAdmin(chat *entity.Chat, userID uuid.UUID) bool {
	for _, m := range chat.Members {
		if m.UserID == userID {
			return m.Role == entity.RoleAdmin
		}
	}
	return false
}
