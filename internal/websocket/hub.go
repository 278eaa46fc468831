package websocket

import (
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// MembershipChecker reports whether a user belongs to a chat. Unknown chats
// yield repository.ErrChatNotFound.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
}

// MessageSender persists a message sent over a connection and broadcasts it to
// the room, excluding origin.
type MessageSender interface {
	SendMessage(ctx context.Context, userID uuid.UUID, req model.SendMessageRequest, origin *Client) (*model.MessageResponse, error)
}

type HubOptions struct {
	TypingTimeout time.Duration
	Limiter       *config.RateLimiter
	Backplane     *Backplane
	Registerer    prometheus.Registerer
}

type HubStats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
}

// Hub owns every room index and the presence book. All of them change only
// under mu, and presence events are queued before mu is released, so every
// connection observes presence snapshots in mutation order.
type Hub struct {
	clients     map[*Client]bool
	userClients map[uuid.UUID]map[*Client]bool
	rooms       map[uuid.UUID]map[*Client]bool
	clientRooms map[*Client]map[uuid.UUID]bool
	presence    *presenceBook

	members       MembershipChecker
	messages      MessageSender
	backplane     *Backplane
	limiter       *config.RateLimiter
	metrics       *hubMetrics
	typingTimeout time.Duration

	mu sync.Mutex
}

func NewHub(members MembershipChecker, opts HubOptions) *Hub {
	timeout := opts.TypingTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &Hub{
		clients:       make(map[*Client]bool),
		userClients:   make(map[uuid.UUID]map[*Client]bool),
		rooms:         make(map[uuid.UUID]map[*Client]bool),
		clientRooms:   make(map[*Client]map[uuid.UUID]bool),
		presence:      newPresenceBook(),
		members:       members,
		backplane:     opts.Backplane,
		limiter:       opts.Limiter,
		metrics:       newHubMetrics(opts.Registerer),
		typingTimeout: timeout,
	}
}

// SetMessageSender must be called before the hub serves connections.
func (h *Hub) SetMessageSender(sender MessageSender) {
	h.messages = sender
}

// Run relays events from other nodes until ctx is done. Without a backplane it
// only waits.
func (h *Hub) Run(ctx context.Context) {
	if h.backplane == nil {
		<-ctx.Done()
		return
	}
	h.backplane.run(ctx, h.deliverRemote)
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true
	h.metrics.setConnections(len(h.clients))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	h.leaveAllLocked(client)
	delete(h.clients, client)
	close(client.Send)

	if userSet, ok := h.userClients[client.UserID]; ok {
		delete(userSet, client)
		if len(userSet) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	h.metrics.setConnections(len(h.clients))
}

// Join subscribes client to chatID after checking membership. Joining a room
// twice only resends the current presence and typing sets.
func (h *Hub) Join(ctx context.Context, client *Client, chatID uuid.UUID) error {
	if chatID == uuid.Nil {
		return helper.NewBadRequestError("chat_id is required")
	}

	ok, err := h.members.IsMember(ctx, chatID, client.UserID)
	if errors.Is(err, repository.ErrChatNotFound) {
		return helper.NewNotFoundError("Chat not found")
	}
	if err != nil {
		slog.Error("Failed to check chat membership", "error", err, "chatID", chatID, "userID", client.UserID)
		return helper.NewServiceUnavailableError("")
	}
	if !ok {
		return helper.NewForbiddenError("You are not a member of this chat")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, registered := h.clients[client]; !registered {
		return nil
	}
	h.joinLocked(client, chatID)
	return nil
}

func (h *Hub) Leave(client *Client, chatID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, chatID)
}

func (h *Hub) LeaveAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveAllLocked(client)
}

// AdmitUsers joins every open connection of userIDs to chatID, on this node
// and, through the backplane, on the others. Callers must have established
// membership.
func (h *Hub) AdmitUsers(chatID uuid.UUID, userIDs ...uuid.UUID) {
	h.mu.Lock()
	h.admitLocked(chatID, userIDs)
	h.mu.Unlock()

	h.publish(envelope{Scope: scopeAdmit, Target: chatID, UserIDs: userIDs})
}

// SetTyping updates the typing set of chatID for userID. Starting requires the
// user to be present in the room.
func (h *Hub) SetTyping(chatID, userID uuid.UUID, isTyping bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setTypingLocked(chatID, userID, isTyping)
}

func (h *Hub) BroadcastToChat(chatID uuid.UUID, event Event, exclude *Client) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}

	h.mu.Lock()
	n := h.fanoutLocked(h.rooms[chatID], data, exclude)
	h.mu.Unlock()
	h.metrics.recordOut(event.Type, n)

	h.publish(envelope{Scope: scopeRoom, Target: chatID, Type: event.Type, Data: data})
}

func (h *Hub) BroadcastToUser(userID uuid.UUID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}

	h.mu.Lock()
	n := h.fanoutLocked(h.userClients[userID], data, nil)
	h.mu.Unlock()
	h.metrics.recordOut(event.Type, n)

	h.publish(envelope{Scope: scopeUser, Target: userID, Type: event.Type, Data: data})
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HubStats{
		Connections: len(h.clients),
		Users:       len(h.userClients),
		Rooms:       len(h.rooms),
	}
}

func (h *Hub) joinLocked(client *Client, chatID uuid.UUID) {
	joined, ok := h.clientRooms[client]
	if !ok {
		joined = make(map[uuid.UUID]bool)
		h.clientRooms[client] = joined
	}

	if joined[chatID] {
		h.sendLocked(client, h.presenceEvent(chatID))
		h.sendLocked(client, h.typingEvent(chatID))
		return
	}

	joined[chatID] = true
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*Client]bool)
	}
	h.rooms[chatID][client] = true
	h.metrics.setRooms(len(h.rooms))

	if h.presence.markOnline(chatID, client.UserID) {
		h.emitLocked(chatID, h.presenceEvent(chatID))
	} else {
		h.sendLocked(client, h.presenceEvent(chatID))
	}
	h.sendLocked(client, h.typingEvent(chatID))
}

func (h *Hub) leaveLocked(client *Client, chatID uuid.UUID) {
	joined, ok := h.clientRooms[client]
	if !ok || !joined[chatID] {
		return
	}

	delete(joined, chatID)
	if len(joined) == 0 {
		delete(h.clientRooms, client)
	}

	if room, ok := h.rooms[chatID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, chatID)
		}
	}
	h.metrics.setRooms(len(h.rooms))

	if h.presence.markOffline(chatID, client.UserID) {
		h.emitLocked(chatID, h.presenceEvent(chatID))
		if h.presence.stopTyping(chatID, client.UserID) {
			h.emitLocked(chatID, h.typingEvent(chatID))
		}
	}
}

func (h *Hub) leaveAllLocked(client *Client) {
	for chatID := range h.clientRooms[client] {
		h.leaveLocked(client, chatID)
	}
}

func (h *Hub) admitLocked(chatID uuid.UUID, userIDs []uuid.UUID) {
	for _, userID := range userIDs {
		for client := range h.userClients[userID] {
			h.joinLocked(client, chatID)
		}
	}
}

func (h *Hub) setTypingLocked(chatID, userID uuid.UUID, isTyping bool) {
	var changed bool
	if isTyping {
		if !h.presence.isOnline(chatID, userID) {
			return
		}
		changed = h.presence.startTyping(chatID, userID, h.typingTimeout, func(entry *typingEntry) {
			h.expireTyping(chatID, userID, entry)
		})
	} else {
		changed = h.presence.stopTyping(chatID, userID)
	}

	if changed {
		h.emitLocked(chatID, h.typingEvent(chatID))
	}
}

func (h *Hub) expireTyping(chatID, userID uuid.UUID, entry *typingEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.presence.isCurrent(chatID, userID, entry) {
		return
	}
	h.presence.stopTyping(chatID, userID)
	h.emitLocked(chatID, h.typingEvent(chatID))
}

func (h *Hub) setTypingFrom(client *Client, chatID uuid.UUID, isTyping bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clientRooms[client][chatID] {
		if !isTyping {
			return nil
		}
		return helper.NewForbiddenError("Join the room first")
	}
	h.setTypingLocked(chatID, client.UserID, isTyping)
	return nil
}

func (h *Hub) presenceEvent(chatID uuid.UUID) Event {
	return Event{
		Type: EventPresenceUpdate,
		Payload: PresencePayload{
			ChatID:      chatID,
			OnlineUsers: h.presence.onlineUsers(chatID),
		},
		Meta: &EventMeta{Timestamp: time.Now().UnixMilli(), ChatID: chatID},
	}
}

func (h *Hub) typingEvent(chatID uuid.UUID) Event {
	return Event{
		Type: EventTypingUpdate,
		Payload: TypingPayload{
			ChatID:      chatID,
			TypingUsers: h.presence.typingUsers(chatID),
		},
		Meta: &EventMeta{Timestamp: time.Now().UnixMilli(), ChatID: chatID},
	}
}

func (h *Hub) emitLocked(chatID uuid.UUID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}
	h.metrics.recordOut(event.Type, h.fanoutLocked(h.rooms[chatID], data, nil))
}

func (h *Hub) send(client *Client, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(client, event)
}

func (h *Hub) sendLocked(client *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}
	if h.enqueueLocked(client, data) {
		h.metrics.recordOut(event.Type, 1)
	}
}

func (h *Hub) fanoutLocked(targets map[*Client]bool, data []byte, exclude *Client) int {
	n := 0
	for client := range targets {
		if client == exclude {
			continue
		}
		if h.enqueueLocked(client, data) {
			n++
		}
	}
	return n
}

// enqueueLocked never blocks. A connection that cannot keep up is dropped and
// cleans itself up through its read pump.
func (h *Hub) enqueueLocked(client *Client, data []byte) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		h.metrics.recordDropped()
		slog.Warn("Send buffer full, disconnecting client", "userID", client.UserID)
		client.kick()
		return false
	}
}

func (h *Hub) publish(env envelope) {
	if h.backplane == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.backplane.publish(ctx, env); err != nil {
		slog.Warn("Failed to publish to backplane", "error", err, "scope", env.Scope)
		return
	}
	h.metrics.recordRemote("out")
}

func (h *Hub) deliverRemote(env envelope) {
	h.metrics.recordRemote("in")

	h.mu.Lock()
	defer h.mu.Unlock()

	switch env.Scope {
	case scopeRoom:
		h.metrics.recordOut(env.Type, h.fanoutLocked(h.rooms[env.Target], env.Data, nil))
	case scopeUser:
		h.metrics.recordOut(env.Type, h.fanoutLocked(h.userClients[env.Target], env.Data, nil))
	case scopeAdmit:
		h.admitLocked(env.Target, env.UserIDs)
	default:
		slog.Warn("Unknown backplane scope", "scope", env.Scope)
	}
}

func (h *Hub) allowInbound(client *Client) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(client.UserID.String())
}

func (h *Hub) handleClientEvent(ctx context.Context, client *Client, ev ClientEvent) {
	var err error
	switch ev.Type {
	case EventJoinRoom:
		err = h.Join(ctx, client, ev.Meta.ChatID)
	case EventLeaveRoom:
		h.Leave(client, ev.Meta.ChatID)
	case EventTypingStart:
		err = h.setTypingFrom(client, ev.Meta.ChatID, true)
	case EventTypingStop:
		err = h.setTypingFrom(client, ev.Meta.ChatID, false)
	case EventSendMessage:
		err = h.handleSendMessage(ctx, client, ev)
	default:
		err = helper.NewBadRequestError("Unknown event type")
	}

	result := "ok"
	if err != nil {
		result = "error"
		h.sendError(client, ev.Type, err)
	}
	h.metrics.recordIn(ev.Type, result)
}

func (h *Hub) handleSendMessage(ctx context.Context, client *Client, ev ClientEvent) error {
	if h.messages == nil {
		return helper.NewServiceUnavailableError("")
	}

	var payload SendMessagePayload
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return helper.NewBadRequestError("Invalid payload")
		}
	}

	msg, err := h.messages.SendMessage(ctx, client.UserID, model.SendMessageRequest{
		ChatID:    ev.Meta.ChatID,
		Content:   payload.Content,
		ClientRef: ev.Meta.ClientRef,
	}, client)
	if err != nil {
		return err
	}

	h.send(client, Event{
		Type:    EventMessageAck,
		Payload: msg,
		Meta: &EventMeta{
			Timestamp: time.Now().UnixMilli(),
			ChatID:    msg.ChatID,
			SenderID:  client.UserID,
			ClientRef: ev.Meta.ClientRef,
		},
	})
	return nil
}

func (h *Hub) sendError(client *Client, eventType EventType, err error) {
	var appErr *helper.AppError
	if !errors.As(err, &appErr) {
		slog.Error("Unhandled websocket event error", "error", err, "type", eventType, "userID", client.UserID)
		appErr = helper.NewInternalServerError("")
	}

	h.send(client, Event{
		Type: EventError,
		Payload: ErrorPayload{
			Code:    appErr.Code,
			Message: appErr.Message,
			Event:   eventType,
		},
		Meta: &EventMeta{Timestamp: time.Now().UnixMilli()},
	})
}
