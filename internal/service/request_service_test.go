package service

import (
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/websocket"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest(t *testing.T) {
	t.Run("Creates Pending Request", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")
		bobConn := env.connect(bob)

		resp, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)
		assert.Equal(t, model.SendResultRequest, resp.Kind)
		require.NotNil(t, resp.Request)
		assert.Equal(t, alice, resp.Request.SenderID)
		assert.Equal(t, bob, resp.Request.ReceiverID)
		assert.Nil(t, resp.Chat)

		ev := waitFor(t, bobConn, websocket.EventRequestCreated)
		var incoming model.IncomingRequestResponse
		require.NoError(t, json.Unmarshal(ev.Payload, &incoming))
		assert.Equal(t, resp.Request.ID, incoming.ID)
		require.NotNil(t, incoming.Sender)
		assert.Equal(t, "Alice", incoming.Sender.DisplayName)

		for _, viewer := range []uuid.UUID{alice, bob} {
			other := bob
			if viewer == bob {
				other = alice
			}
			rel, err := env.requests.GetRelationship(env.ctx, viewer, other)
			require.NoError(t, err)
			assert.Equal(t, model.RelationshipPending, rel.Status)
			require.NotNil(t, rel.SenderID)
			assert.Equal(t, alice, *rel.SenderID)
		}
	})

	t.Run("Fail Duplicate Request", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")

		_, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)

		_, err = env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		assertAppError(t, err, http.StatusConflict)
	})

	t.Run("Fail Self Request", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.newUser("Alice")

		_, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: alice})
		assertAppError(t, err, http.StatusBadRequest)
	})

	t.Run("Fail Missing Target", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.newUser("Alice")

		_, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{})
		assertAppError(t, err, http.StatusBadRequest)
	})

	t.Run("Fail Unknown Target", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.newUser("Alice")

		_, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: uuid.New()})
		assertAppError(t, err, http.StatusNotFound)
	})

	t.Run("Implicit Accept When Target Already Asked", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")
		aliceConn := env.connect(alice)

		first, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)

		second, err := env.requests.SendRequest(env.ctx, bob, model.SendRequestRequest{TargetUserID: alice})
		require.NoError(t, err)
		assert.Equal(t, model.SendResultChat, second.Kind)
		require.NotNil(t, second.Chat)
		assert.False(t, second.Chat.IsGroup)
		assert.Equal(t, "Alice", second.Chat.Name, "direct chat is named after the other member")
		require.NotNil(t, second.Chat.CreatorID)
		assert.Equal(t, alice, *second.Chat.CreatorID, "original sender becomes creator")

		accepted := waitFor(t, aliceConn, websocket.EventRequestAccepted)
		assert.Equal(t, second.Chat.ID, accepted.Meta.ChatID)

		rel, err := env.requests.GetRelationship(env.ctx, alice, bob)
		require.NoError(t, err)
		assert.Equal(t, model.RelationshipConnected, rel.Status)
		require.NotNil(t, rel.ChatID)
		assert.Equal(t, second.Chat.ID, *rel.ChatID)

		_, err = env.requests.AcceptRequest(env.ctx, bob, first.Request.ID)
		assertAppError(t, err, http.StatusNotFound)

		incoming, err := env.requests.ListIncomingRequests(env.ctx, bob)
		require.NoError(t, err)
		assert.Empty(t, incoming)
	})

	t.Run("Fail When Already Connected", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")
		env.connectTwo(t, alice, bob)

		_, err := env.requests.SendRequest(env.ctx, bob, model.SendRequestRequest{TargetUserID: alice})
		assertAppError(t, err, http.StatusConflict)
	})
}

func TestSendRequest_ConcurrentMutualRequests(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := env.newUser("Alice"), env.newUser("Bob")

	var wg sync.WaitGroup
	results := make([]*model.SendRequestResponse, 2)
	errs := make([]error, 2)
	pairs := [][2]uuid.UUID{{alice, bob}, {bob, alice}}
	for i, p := range pairs {
		wg.Add(1)
		go func(i int, from, to uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = env.requests.SendRequest(env.ctx, from, model.SendRequestRequest{TargetUserID: to})
		}(i, p[0], p[1])
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	kinds := []string{results[0].Kind, results[1].Kind}
	assert.ElementsMatch(t, []string{model.SendResultRequest, model.SendResultChat}, kinds)

	chats, err := env.chats.ListChats(env.ctx, alice)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	outgoing, err := env.requests.ListOutgoingRequests(env.ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, outgoing)
}

func TestAcceptRequest(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")
		aliceConn := env.connect(alice)
		bobConn := env.connect(bob)

		sent, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)

		chat, err := env.requests.AcceptRequest(env.ctx, bob, sent.Request.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", chat.Name)
		assert.Len(t, chat.Members, 2)

		created := waitFor(t, aliceConn, websocket.EventChatCreated)
		var aliceView model.ChatResponse
		require.NoError(t, json.Unmarshal(created.Payload, &aliceView))
		assert.Equal(t, "Bob", aliceView.Name)
		waitFor(t, aliceConn, websocket.EventRequestAccepted)
		waitFor(t, bobConn, websocket.EventChatCreated)

		stats := env.hub.Stats()
		assert.Equal(t, 1, stats.Rooms, "both connections admitted to the new room")
	})

	t.Run("Fail Sender Cannot Accept", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")

		sent, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)

		_, err = env.requests.AcceptRequest(env.ctx, alice, sent.Request.ID)
		assertAppError(t, err, http.StatusForbidden)

		rel, err := env.requests.GetRelationship(env.ctx, alice, bob)
		require.NoError(t, err)
		assert.Equal(t, model.RelationshipPending, rel.Status, "failed accept leaves the request alone")
	})

	t.Run("Fail Unknown Request", func(t *testing.T) {
		env := newTestEnv(t)
		bob := env.newUser("Bob")

		_, err := env.requests.AcceptRequest(env.ctx, bob, uuid.New())
		assertAppError(t, err, http.StatusNotFound)
	})

	t.Run("Concurrent Accepts Create One Chat", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")

		sent, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		var ok, notFound int
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.requests.AcceptRequest(env.ctx, bob, sent.Request.ID)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else if assert.True(t, isCode(err, http.StatusNotFound), "unexpected error %v", err) {
					notFound++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, ok)
		assert.Equal(t, 4, notFound)

		chats, err := env.chats.ListChats(env.ctx, bob)
		require.NoError(t, err)
		assert.Len(t, chats, 1)
	})

	t.Run("Accept Racing Reject Has One Winner", func(t *testing.T) {
		env := newTestEnv(t)

		for round := 0; round < 10; round++ {
			alice, bob := env.newUser("Alice"), env.newUser("Bob")

			sent, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
			require.NoError(t, err)

			var wg sync.WaitGroup
			var acceptErr, rejectErr error
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, acceptErr = env.requests.AcceptRequest(env.ctx, bob, sent.Request.ID)
			}()
			go func() {
				defer wg.Done()
				rejectErr = env.requests.RejectRequest(env.ctx, bob, sent.Request.ID)
			}()
			wg.Wait()

			chats, err := env.chats.ListChats(env.ctx, bob)
			require.NoError(t, err)

			rel, err := env.requests.GetRelationship(env.ctx, alice, bob)
			require.NoError(t, err)

			if acceptErr == nil {
				assertAppError(t, rejectErr, http.StatusNotFound)
				assert.Len(t, chats, 1)
				assert.Equal(t, model.RelationshipConnected, rel.Status)
			} else {
				require.NoError(t, rejectErr, "one of accept or reject must win")
				assertAppError(t, acceptErr, http.StatusNotFound)
				assert.Empty(t, chats)
				assert.Equal(t, model.RelationshipNone, rel.Status)
			}
		}
	})
}

func TestRejectRequest(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")
		aliceConn := env.connect(alice)

		sent, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)

		require.NoError(t, env.requests.RejectRequest(env.ctx, bob, sent.Request.ID))
		waitFor(t, aliceConn, websocket.EventRequestRejected)

		rel, err := env.requests.GetRelationship(env.ctx, bob, alice)
		require.NoError(t, err)
		assert.Equal(t, model.RelationshipNone, rel.Status)

		_, err = env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		assert.NoError(t, err, "a rejected pair can start over")
	})

	t.Run("Fail Twice", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := env.newUser("Alice"), env.newUser("Bob")

		sent, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)
		require.NoError(t, env.requests.RejectRequest(env.ctx, bob, sent.Request.ID))

		err = env.requests.RejectRequest(env.ctx, bob, sent.Request.ID)
		assertAppError(t, err, http.StatusNotFound)
	})

	t.Run("Fail Outsider", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob, carol := env.newUser("Alice"), env.newUser("Bob"), env.newUser("Carol")

		sent, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
		require.NoError(t, err)

		err = env.requests.RejectRequest(env.ctx, carol, sent.Request.ID)
		assertAppError(t, err, http.StatusForbidden)
	})
}

func TestCancelRequest(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := env.newUser("Alice"), env.newUser("Bob")
	bobConn := env.connect(bob)

	sent, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
	require.NoError(t, err)

	err = env.requests.CancelRequest(env.ctx, bob, sent.Request.ID)
	assertAppError(t, err, http.StatusForbidden)

	require.NoError(t, env.requests.CancelRequest(env.ctx, alice, sent.Request.ID))
	waitFor(t, bobConn, websocket.EventRequestCancelled)

	incoming, err := env.requests.ListIncomingRequests(env.ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestListRequests(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.newUser("Alice"), env.newUser("Bob"), env.newUser("Carol")

	_, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: carol})
	require.NoError(t, err)
	_, err = env.requests.SendRequest(env.ctx, bob, model.SendRequestRequest{TargetUserID: carol})
	require.NoError(t, err)

	incoming, err := env.requests.ListIncomingRequests(env.ctx, carol)
	require.NoError(t, err)
	require.Len(t, incoming, 2)

	names := []string{incoming[0].Sender.DisplayName, incoming[1].Sender.DisplayName}
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, names)

	outgoing, err := env.requests.ListOutgoingRequests(env.ctx, alice)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	require.NotNil(t, outgoing[0].Receiver)
	assert.Equal(t, "Carol", outgoing[0].Receiver.DisplayName)

	none, err := env.requests.ListIncomingRequests(env.ctx, alice)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestExpireRequests(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.newUser("Alice"), env.newUser("Bob"), env.newUser("Carol")

	past := time.Now().Add(-72 * time.Hour)
	env.store.SetClock(func() time.Time { return past })
	_, err := env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: bob})
	require.NoError(t, err)

	env.store.SetClock(time.Now)
	_, err = env.requests.SendRequest(env.ctx, alice, model.SendRequestRequest{TargetUserID: carol})
	require.NoError(t, err)

	n, err := env.requests.ExpireRequests(env.ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	outgoing, err := env.requests.ListOutgoingRequests(env.ctx, alice)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, carol, outgoing[0].ReceiverID)

	_, err = env.requests.ExpireRequests(env.ctx, 0)
	assertAppError(t, err, http.StatusBadRequest)
}
