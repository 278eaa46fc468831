package service

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/repository"
	"CollabChatAPI/internal/websocket"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ctx       context.Context
	cfg       *config.AppConfig
	store     *repository.MemoryRegistry
	directory *adapter.MemoryDirectory
	hub       *websocket.Hub
	requests  *RequestService
	chats     *ChatService
	messages  *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.AppConfig{
		StoreDriver:          config.StoreDriverMemory,
		JWTSecret:            "secret",
		TypingTimeoutSeconds: 8,
		MessagePageSize:      20,
		MessageMaxPageSize:   50,
	}

	store := repository.NewMemoryRegistry()
	repo := repository.NewRepository(store, nil)
	directory := adapter.NewMemoryDirectory()
	validator := config.NewValidator()
	metrics := NewMetrics(prometheus.NewRegistry())

	hub := websocket.NewHub(store.Chats(), websocket.HubOptions{TypingTimeout: time.Minute})

	env := &testEnv{
		ctx:       context.Background(),
		cfg:       cfg,
		store:     store,
		directory: directory,
		hub:       hub,
		requests:  NewRequestService(repo, validator, directory, hub, metrics),
		chats:     NewChatService(repo, validator, directory, hub, metrics),
		messages:  NewMessageService(cfg, repo, validator, directory, hub, metrics),
	}
	hub.SetMessageSender(env.messages)
	return env
}

func (e *testEnv) newUser(name string) uuid.UUID {
	id := uuid.New()
	e.directory.Put(model.UserSummary{ID: id, DisplayName: name})
	return id
}

func (e *testEnv) connect(userID uuid.UUID) *websocket.Client {
	c := websocket.NewClient(e.hub, nil, userID)
	e.hub.Register(c)
	return c
}

// connectTwo sends a request from a to b and accepts it.
func (e *testEnv) connectTwo(t *testing.T, a, b uuid.UUID) *model.ChatResponse {
	t.Helper()
	sent, err := e.requests.SendRequest(e.ctx, a, model.SendRequestRequest{TargetUserID: b})
	require.NoError(t, err)
	require.Equal(t, model.SendResultRequest, sent.Kind)

	chat, err := e.requests.AcceptRequest(e.ctx, b, sent.Request.ID)
	require.NoError(t, err)
	return chat
}

type wsEvent struct {
	Type    websocket.EventType  `json:"type"`
	Payload json.RawMessage      `json:"payload"`
	Meta    *websocket.EventMeta `json:"meta"`
}

// waitFor skips events until one of the wanted type arrives.
func waitFor(t *testing.T, c *websocket.Client, want websocket.EventType) wsEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case data, ok := <-c.Send:
			require.True(t, ok, "send channel closed")
			var ev wsEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return wsEvent{}
		}
	}
}

// assertNoEventOf drains what is queued and fails if any event has type t.
func assertNoEventOf(t *testing.T, c *websocket.Client, unwanted websocket.EventType) {
	t.Helper()
	deadline := time.After(30 * time.Millisecond)
	for {
		select {
		case data := <-c.Send:
			var ev wsEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			assert.NotEqual(t, unwanted, ev.Type, "unexpected event: %s", data)
		case <-deadline:
			return
		}
	}
}

func assertAppError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, helper.IsAppErrorCode(err, code), "expected %d, got %v", code, err)
}

func isCode(err error, code int) bool {
	return helper.IsAppErrorCode(err, code)
}
