package service

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/entity"
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/repository"
	"CollabChatAPI/internal/websocket"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	sendRequestRetries    = 3
	sendRequestRetryDelay = 20 * time.Millisecond
)

// RequestService runs the collaboration request state machine. Per user pair
// the state only moves NONE -> PENDING -> (NONE | CONNECTED), and every
// transition happens under the pair lock inside one transaction.
type RequestService struct {
	repo      *repository.Repository
	validator *validator.Validate
	directory adapter.IdentityDirectory
	wsHub     *websocket.Hub
	metrics   *Metrics
}

func NewRequestService(repo *repository.Repository, validator *validator.Validate, directory adapter.IdentityDirectory, wsHub *websocket.Hub, metrics *Metrics) *RequestService {
	return &RequestService{
		repo:      repo,
		validator: validator,
		directory: directory,
		wsHub:     wsHub,
		metrics:   metrics,
	}
}

type sendOutcome struct {
	request  *entity.Request
	chat     *entity.Chat
	consumed *entity.Request
}

func (s *RequestService) GetRelationship(ctx context.Context, userID, otherID uuid.UUID) (*model.RelationshipResponse, error) {
	if userID == otherID {
		return nil, helper.NewBadRequestError("Cannot query a relationship with yourself")
	}

	resp := &model.RelationshipResponse{Status: model.RelationshipNone}
	err := s.repo.Store.Atomic(ctx, func(tx repository.Registry) error {
		if err := tx.LockPair(ctx, helper.PairKey(userID, otherID)); err != nil {
			return err
		}

		chat, err := tx.Chats().FindDirectBetween(ctx, userID, otherID)
		if err == nil {
			resp.Status = model.RelationshipConnected
			resp.ChatID = &chat.ID
			return nil
		}
		if !errors.Is(err, repository.ErrChatNotFound) {
			return err
		}

		req, err := tx.Requests().FindBetween(ctx, userID, otherID)
		if err == nil {
			resp.Status = model.RelationshipPending
			resp.RequestID = &req.ID
			resp.SenderID = &req.SenderID
			return nil
		}
		if !errors.Is(err, repository.ErrRequestNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err, "get_relationship", s.metrics)
	}

	return resp, nil
}

// SendRequest creates a pending request to the target. When the target has
// already asked for us, the request is accepted instead and the new chat is
// returned.
func (s *RequestService) SendRequest(ctx context.Context, userID uuid.UUID, req model.SendRequestRequest) (*model.SendRequestResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", userID)
		return nil, helper.NewBadRequestError("")
	}

	targetID := req.TargetUserID
	if targetID == userID {
		return nil, helper.NewBadRequestError("Cannot send a request to yourself")
	}

	if _, err := s.directory.ResolveUser(ctx, targetID); err != nil {
		if errors.Is(err, adapter.ErrUserNotFound) {
			return nil, helper.NewNotFoundError("User not found")
		}
		slog.Error("Failed to resolve request target", "error", err, "targetID", targetID)
		return nil, helper.NewServiceUnavailableError("")
	}

	out, err := helper.RetryWithBackoff(func() (*sendOutcome, bool, error) {
		out, err := s.sendInTx(ctx, userID, targetID)
		if errors.Is(err, repository.ErrPairConflict) {
			return nil, true, err
		}
		return out, false, err
	}, sendRequestRetries, sendRequestRetryDelay)
	if err != nil {
		return nil, mapStoreError(err, "send_request", s.metrics)
	}

	if out.chat != nil {
		s.metrics.recordTransition("implicit_accept")
		chatResp := s.announceChat(ctx, out.consumed, out.chat)
		return &model.SendRequestResponse{
			Kind: model.SendResultChat,
			Chat: chatResp[userID],
		}, nil
	}

	s.metrics.recordTransition("sent")
	users := resolveUsers(ctx, s.directory, []uuid.UUID{userID})
	requestResp := helper.ToRequestResponse(out.request)
	s.wsHub.BroadcastToUser(targetID, websocket.Event{
		Type: websocket.EventRequestCreated,
		Payload: model.IncomingRequestResponse{
			RequestResponse: *requestResp,
			Sender:          summaryPtr(users, userID),
		},
		Meta: &websocket.EventMeta{Timestamp: time.Now().UnixMilli(), SenderID: userID},
	})

	return &model.SendRequestResponse{
		Kind:    model.SendResultRequest,
		Request: requestResp,
	}, nil
}

func (s *RequestService) sendInTx(ctx context.Context, userID, targetID uuid.UUID) (*sendOutcome, error) {
	out := &sendOutcome{}
	err := s.repo.Store.Atomic(ctx, func(tx repository.Registry) error {
		if err := tx.LockPair(ctx, helper.PairKey(userID, targetID)); err != nil {
			return err
		}

		existing, err := tx.Requests().FindBetween(ctx, userID, targetID)
		switch {
		case err == nil:
			if existing.SenderID == userID {
				return helper.NewConflictError("Request already sent")
			}
			if _, err := tx.Requests().DeleteByID(ctx, existing.ID); err != nil {
				return err
			}
			chat, err := createDirectChat(ctx, tx, existing.SenderID, existing.ReceiverID)
			if err != nil {
				return err
			}
			out.chat = chat
			out.consumed = existing
			return nil
		case !errors.Is(err, repository.ErrRequestNotFound):
			return err
		}

		_, err = tx.Chats().FindDirectBetween(ctx, userID, targetID)
		if err == nil {
			return helper.NewConflictError("You are already connected with this user")
		}
		if !errors.Is(err, repository.ErrChatNotFound) {
			return err
		}

		request := &entity.Request{SenderID: userID, ReceiverID: targetID}
		if err := tx.Requests().Create(ctx, request); err != nil {
			return err
		}
		out.request = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AcceptRequest consumes the request and creates the direct chat with the
// sender as creator. Only the receiver may accept.
func (s *RequestService) AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) (*model.ChatResponse, error) {
	var chat *entity.Chat
	consumed, err := s.consumeRequest(ctx, requestID,
		func(req *entity.Request) error {
			if req.ReceiverID != userID {
				return helper.NewForbiddenError("Only the receiver can accept this request")
			}
			return nil
		},
		func(tx repository.Registry, req *entity.Request) error {
			var err error
			chat, err = createDirectChat(ctx, tx, req.SenderID, req.ReceiverID)
			return err
		},
	)
	if err != nil {
		return nil, mapStoreError(err, "accept_request", s.metrics)
	}

	s.metrics.recordTransition("accepted")
	views := s.announceChat(ctx, consumed, chat)
	return views[userID], nil
}

func (s *RequestService) RejectRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	consumed, err := s.consumeRequest(ctx, requestID, func(req *entity.Request) error {
		if req.ReceiverID != userID {
			return helper.NewForbiddenError("Only the receiver can reject this request")
		}
		return nil
	}, nil)
	if err != nil {
		return mapStoreError(err, "reject_request", s.metrics)
	}

	s.metrics.recordTransition("rejected")
	s.wsHub.BroadcastToUser(consumed.SenderID, websocket.Event{
		Type:    websocket.EventRequestRejected,
		Payload: helper.ToRequestResponse(consumed),
		Meta:    &websocket.EventMeta{Timestamp: time.Now().UnixMilli(), SenderID: userID},
	})
	return nil
}

// CancelRequest withdraws a pending request. Only the sender may cancel.
func (s *RequestService) CancelRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	consumed, err := s.consumeRequest(ctx, requestID, func(req *entity.Request) error {
		if req.SenderID != userID {
			return helper.NewForbiddenError("Only the sender can cancel this request")
		}
		return nil
	}, nil)
	if err != nil {
		return mapStoreError(err, "cancel_request", s.metrics)
	}

	s.metrics.recordTransition("cancelled")
	s.wsHub.BroadcastToUser(consumed.ReceiverID, websocket.Event{
		Type:    websocket.EventRequestCancelled,
		Payload: helper.ToRequestResponse(consumed),
		Meta:    &websocket.EventMeta{Timestamp: time.Now().UnixMilli(), SenderID: userID},
	})
	return nil
}

// consumeRequest deletes a request after authorize accepts it, then runs then
// in the same transaction. The request is read first only to learn its pair,
// so the pair lock is always taken before any row is touched.
func (s *RequestService) consumeRequest(ctx context.Context, requestID uuid.UUID, authorize func(*entity.Request) error, then func(repository.Registry, *entity.Request) error) (*entity.Request, error) {
	var consumed *entity.Request
	err := s.repo.Store.Atomic(ctx, func(tx repository.Registry) error {
		req, err := tx.Requests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if err := authorize(req); err != nil {
			return err
		}
		if err := tx.LockPair(ctx, req.PairKey); err != nil {
			return err
		}

		deleted, err := tx.Requests().DeleteByID(ctx, requestID)
		if err != nil {
			return err
		}
		consumed = deleted

		if then != nil {
			return then(tx, deleted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func (s *RequestService) ListIncomingRequests(ctx context.Context, userID uuid.UUID) ([]model.IncomingRequestResponse, error) {
	requests, err := s.repo.Store.Requests().ListByReceiver(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "list_incoming_requests", s.metrics)
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.SenderID)
	}
	users := resolveUsers(ctx, s.directory, ids)

	resp := make([]model.IncomingRequestResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, model.IncomingRequestResponse{
			RequestResponse: *helper.ToRequestResponse(&requests[i]),
			Sender:          summaryPtr(users, requests[i].SenderID),
		})
	}
	return resp, nil
}

func (s *RequestService) ListOutgoingRequests(ctx context.Context, userID uuid.UUID) ([]model.IncomingRequestResponse, error) {
	requests, err := s.repo.Store.Requests().ListBySender(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "list_outgoing_requests", s.metrics)
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ReceiverID)
	}
	users := resolveUsers(ctx, s.directory, ids)

	resp := make([]model.IncomingRequestResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, model.IncomingRequestResponse{
			RequestResponse: *helper.ToRequestResponse(&requests[i]),
			Receiver:        summaryPtr(users, requests[i].ReceiverID),
		})
	}
	return resp, nil
}

// ExpireRequests drops pending requests created more than olderThan ago.
func (s *RequestService) ExpireRequests(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, helper.NewBadRequestError("Retention must be positive")
	}

	var n int64
	err := s.repo.Store.Atomic(ctx, func(tx repository.Registry) error {
		var err error
		n, err = tx.Requests().DeleteCreatedBefore(ctx, time.Now().Add(-olderThan))
		return err
	})
	if err != nil {
		return 0, mapStoreError(err, "expire_requests", s.metrics)
	}

	s.metrics.recordTransitions("expired", n)
	return n, nil
}

// announceChat admits both parties' connections to the new room and tells
// them about it. It returns each member's view of the chat.
func (s *RequestService) announceChat(ctx context.Context, consumed *entity.Request, chat *entity.Chat) map[uuid.UUID]*model.ChatResponse {
	memberIDs := chat.MemberIDs()
	s.wsHub.AdmitUsers(chat.ID, memberIDs...)

	users := resolveUsers(ctx, s.directory, memberIDs)
	views := make(map[uuid.UUID]*model.ChatResponse, len(memberIDs))
	now := time.Now().UnixMilli()
	for _, memberID := range memberIDs {
		view := helper.MapChatToResponse(memberID, chat, users)
		views[memberID] = view
		s.wsHub.BroadcastToUser(memberID, websocket.Event{
			Type:    websocket.EventChatCreated,
			Payload: view,
			Meta:    &websocket.EventMeta{Timestamp: now, ChatID: chat.ID},
		})
	}

	s.wsHub.BroadcastToUser(consumed.SenderID, websocket.Event{
		Type: websocket.EventRequestAccepted,
		Payload: map[string]interface{}{
			"request": helper.ToRequestResponse(consumed),
			"chat":    views[consumed.SenderID],
		},
		Meta: &websocket.EventMeta{Timestamp: now, ChatID: chat.ID, SenderID: consumed.ReceiverID},
	})
	return views
}

func createDirectChat(ctx context.Context, tx repository.Registry, creatorID, otherID uuid.UUID) (*entity.Chat, error) {
	chat := &entity.Chat{
		CreatorID: &creatorID,
		Members: []entity.ChatMember{
			{UserID: creatorID, Role: entity.RoleMember},
			{UserID: otherID, Role: entity.RoleMember},
		},
	}
	if err := tx.Chats().Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}
