package websocket

import (
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/repository"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMembers struct {
	mu      sync.Mutex
	members map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{members: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (f *fakeMembers) add(chatID uuid.UUID, userIDs ...uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[chatID] == nil {
		f.members[chatID] = make(map[uuid.UUID]bool)
	}
	for _, id := range userIDs {
		f.members[chatID][id] = true
	}
}

func (f *fakeMembers) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users, ok := f.members[chatID]
	if !ok {
		return false, repository.ErrChatNotFound
	}
	return users[userID], nil
}

type receivedEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Meta    *EventMeta      `json:"meta"`
}

func nextEvent(t *testing.T, c *Client) receivedEvent {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var ev receivedEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return receivedEvent{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(30 * time.Millisecond):
	}
}

func presenceOf(t *testing.T, ev receivedEvent) []uuid.UUID {
	t.Helper()
	require.Equal(t, EventPresenceUpdate, ev.Type)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	return p.OnlineUsers
}

func typingOf(t *testing.T, ev receivedEvent) []uuid.UUID {
	t.Helper()
	require.Equal(t, EventTypingUpdate, ev.Type)
	var p TypingPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	return p.TypingUsers
}

type hubFixture struct {
	hub     *Hub
	members *fakeMembers
	chatID  uuid.UUID
	alice   uuid.UUID
	bob     uuid.UUID
}

func newHubFixture(timeout time.Duration) *hubFixture {
	f := &hubFixture{
		members: newFakeMembers(),
		chatID:  uuid.New(),
		alice:   uuid.New(),
		bob:     uuid.New(),
	}
	f.members.add(f.chatID, f.alice, f.bob)
	f.hub = NewHub(f.members, HubOptions{TypingTimeout: timeout})
	return f
}

func (f *hubFixture) connect(userID uuid.UUID) *Client {
	c := NewClient(f.hub, nil, userID)
	f.hub.Register(c)
	return c
}

// join joins and consumes the presence and typing snapshot sent to c.
func (f *hubFixture) join(t *testing.T, c *Client) []uuid.UUID {
	t.Helper()
	require.NoError(t, f.hub.Join(context.Background(), c, f.chatID))
	online := presenceOf(t, nextEvent(t, c))
	typingOf(t, nextEvent(t, c))
	return online
}

func TestHub_JoinEmitsFullOnlineSet(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)
	b := f.connect(f.bob)

	assert.Equal(t, []uuid.UUID{f.alice}, f.join(t, a))

	online := f.join(t, b)
	assert.ElementsMatch(t, []uuid.UUID{f.alice, f.bob}, online)
	assert.ElementsMatch(t, []uuid.UUID{f.alice, f.bob}, presenceOf(t, nextEvent(t, a)))
}

func TestHub_JoinRejectsNonMember(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)
	f.join(t, a)

	stranger := f.connect(uuid.New())
	err := f.hub.Join(context.Background(), stranger, f.chatID)
	assert.True(t, helper.IsAppErrorCode(err, http.StatusForbidden))
	assertNoEvent(t, a)
	assertNoEvent(t, stranger)

	err = f.hub.Join(context.Background(), a, uuid.New())
	assert.True(t, helper.IsAppErrorCode(err, http.StatusNotFound))
}

func TestHub_SecondConnectionGetsSnapshotOnly(t *testing.T) {
	f := newHubFixture(time.Second)
	a1 := f.connect(f.alice)
	a2 := f.connect(f.alice)
	b := f.connect(f.bob)

	f.join(t, a1)
	f.join(t, b)
	nextEvent(t, a1)

	online := f.join(t, a2)
	assert.ElementsMatch(t, []uuid.UUID{f.alice, f.bob}, online)
	assertNoEvent(t, a1)
	assertNoEvent(t, b)

	f.hub.Leave(a1, f.chatID)
	assertNoEvent(t, b)

	f.hub.Unregister(a2)
	assert.Equal(t, []uuid.UUID{f.bob}, presenceOf(t, nextEvent(t, b)))
}

func TestHub_DuplicateJoinResendsSnapshot(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)
	b := f.connect(f.bob)
	f.join(t, a)
	f.join(t, b)
	nextEvent(t, a)

	online := f.join(t, b)
	assert.ElementsMatch(t, []uuid.UUID{f.alice, f.bob}, online)
	assertNoEvent(t, a)
}

func TestHub_TypingLifecycle(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)
	b := f.connect(f.bob)
	f.join(t, a)
	f.join(t, b)
	nextEvent(t, a)

	require.NoError(t, f.hub.setTypingFrom(a, f.chatID, true))
	assert.Equal(t, []uuid.UUID{f.alice}, typingOf(t, nextEvent(t, b)))
	assert.Equal(t, []uuid.UUID{f.alice}, typingOf(t, nextEvent(t, a)))

	require.NoError(t, f.hub.setTypingFrom(a, f.chatID, true))
	assertNoEvent(t, b)

	f.hub.SetTyping(f.chatID, f.alice, false)
	assert.Empty(t, typingOf(t, nextEvent(t, b)))
	nextEvent(t, a)
}

func TestHub_TypingRequiresJoin(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)

	err := f.hub.setTypingFrom(a, f.chatID, true)
	assert.True(t, helper.IsAppErrorCode(err, http.StatusForbidden))
	assert.NoError(t, f.hub.setTypingFrom(a, f.chatID, false))
}

func TestHub_TypingExpiresAfterIdleTimeout(t *testing.T) {
	f := newHubFixture(50 * time.Millisecond)
	a := f.connect(f.alice)
	b := f.connect(f.bob)
	f.join(t, a)
	f.join(t, b)
	nextEvent(t, a)

	require.NoError(t, f.hub.setTypingFrom(a, f.chatID, true))
	assert.Equal(t, []uuid.UUID{f.alice}, typingOf(t, nextEvent(t, b)))

	assert.Empty(t, typingOf(t, nextEvent(t, b)))
}

func TestHub_LeaveClearsTyping(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)
	b := f.connect(f.bob)
	f.join(t, a)
	f.join(t, b)
	nextEvent(t, a)

	require.NoError(t, f.hub.setTypingFrom(a, f.chatID, true))
	nextEvent(t, b)

	f.hub.Unregister(a)
	assert.Equal(t, []uuid.UUID{f.bob}, presenceOf(t, nextEvent(t, b)))
	assert.Empty(t, typingOf(t, nextEvent(t, b)))
}

func TestHub_BroadcastToChatExcludesOrigin(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)
	b := f.connect(f.bob)
	f.join(t, a)
	f.join(t, b)
	nextEvent(t, a)

	f.hub.BroadcastToChat(f.chatID, Event{Type: EventNewMessage, Payload: "hi"}, a)
	assert.Equal(t, EventNewMessage, nextEvent(t, b).Type)
	assertNoEvent(t, a)
}

func TestHub_AdmitUsersJoinsOpenConnections(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)
	b := f.connect(f.bob)

	f.hub.AdmitUsers(f.chatID, f.alice, f.bob)

	assert.Equal(t, []uuid.UUID{f.alice}, presenceOf(t, nextEvent(t, a)))
	typingOf(t, nextEvent(t, a))
	assert.ElementsMatch(t, []uuid.UUID{f.alice, f.bob}, presenceOf(t, nextEvent(t, b)))
	typingOf(t, nextEvent(t, b))
	assert.ElementsMatch(t, []uuid.UUID{f.alice, f.bob}, presenceOf(t, nextEvent(t, a)))

	f.hub.BroadcastToChat(f.chatID, Event{Type: EventNewMessage}, nil)
	assert.Equal(t, EventNewMessage, nextEvent(t, a).Type)
	assert.Equal(t, EventNewMessage, nextEvent(t, b).Type)
}

func TestHub_SlowClientIsKicked(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)

	for i := 0; i < sendBufferSize; i++ {
		f.hub.BroadcastToUser(f.alice, Event{Type: EventRequestCreated})
	}
	select {
	case <-a.ctx.Done():
		t.Fatal("kicked before the buffer was full")
	default:
	}

	f.hub.BroadcastToUser(f.alice, Event{Type: EventRequestCreated})
	select {
	case <-a.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("slow client was not kicked")
	}
}

func TestHub_UnknownEventReportsError(t *testing.T) {
	f := newHubFixture(time.Second)
	a := f.connect(f.alice)

	f.hub.handleClientEvent(context.Background(), a, ClientEvent{Type: "bogus"})

	ev := nextEvent(t, a)
	require.Equal(t, EventError, ev.Type)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, http.StatusBadRequest, p.Code)
	assert.Equal(t, EventType("bogus"), p.Event)
}

type recordingSender struct {
	hub *Hub
}

func (s *recordingSender) SendMessage(ctx context.Context, userID uuid.UUID, req model.SendMessageRequest, origin *Client) (*model.MessageResponse, error) {
	if req.Content == "" {
		return nil, helper.NewBadRequestError("")
	}
	msg := &model.MessageResponse{ID: uuid.New(), ChatID: req.ChatID, SenderID: userID, Seq: 1, Content: req.Content, ClientRef: req.ClientRef}
	s.hub.BroadcastToChat(req.ChatID, Event{Type: EventNewMessage, Payload: msg}, origin)
	return msg, nil
}

func TestHub_SendMessageAcksOriginAndNotifiesRoom(t *testing.T) {
	f := newHubFixture(time.Second)
	f.hub.SetMessageSender(&recordingSender{hub: f.hub})
	a := f.connect(f.alice)
	b := f.connect(f.bob)
	f.join(t, a)
	f.join(t, b)
	nextEvent(t, a)

	payload, _ := json.Marshal(SendMessagePayload{Content: "hello"})
	f.hub.handleClientEvent(context.Background(), a, ClientEvent{
		Type:    EventSendMessage,
		Payload: payload,
		Meta:    ClientEventMeta{ChatID: f.chatID, ClientRef: "ref-1"},
	})

	ack := nextEvent(t, a)
	require.Equal(t, EventMessageAck, ack.Type)
	assert.Equal(t, "ref-1", ack.Meta.ClientRef)
	assert.Equal(t, EventNewMessage, nextEvent(t, b).Type)

	f.hub.handleClientEvent(context.Background(), a, ClientEvent{
		Type: EventSendMessage,
		Meta: ClientEventMeta{ChatID: f.chatID},
	})
	assert.Equal(t, EventError, nextEvent(t, a).Type)
}
