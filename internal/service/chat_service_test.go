package service

import (
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/websocket"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleOf(chat *model.ChatResponse, userID uuid.UUID) string {
	for _, m := range chat.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return ""
}

func TestCreateGroupChat(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob, carol := env.newUser("Alice"), env.newUser("Bob"), env.newUser("Carol")
		bobConn := env.connect(bob)

		chat, err := env.chats.CreateGroupChat(env.ctx, alice, model.CreateGroupChatRequest{
			Name:      "  Design  ",
			MemberIDs: []uuid.UUID{bob, carol, bob, alice},
		})
		require.NoError(t, err)
		assert.True(t, chat.IsGroup)
		assert.Equal(t, "Design", chat.Name)
		assert.Len(t, chat.Members, 3)
		assert.Equal(t, "admin", roleOf(chat, alice))
		assert.Equal(t, "member", roleOf(chat, bob))

		ev := waitFor(t, bobConn, websocket.EventChatCreated)
		assert.Equal(t, chat.ID, ev.Meta.ChatID)

		list, err := env.chats.ListChats(env.ctx, carol)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, chat.ID, list[0].ID)
	})

	t.Run("Fail Unknown Member", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.newUser("Alice")

		_, err := env.chats.CreateGroupChat(env.ctx, alice, model.CreateGroupChatRequest{
			Name:      "Design",
			MemberIDs: []uuid.UUID{uuid.New()},
		})
		assertAppError(t, err, http.StatusNotFound)
	})

	t.Run("Fail Blank Name", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.newUser("Alice")

		_, err := env.chats.CreateGroupChat(env.ctx, alice, model.CreateGroupChatRequest{Name: "   "})
		assertAppError(t, err, http.StatusBadRequest)
	})
}

func TestGetChat(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.newUser("Alice"), env.newUser("Bob"), env.newUser("Carol")
	chat := env.connectTwo(t, alice, bob)

	t.Run("Viewer Relative Name", func(t *testing.T) {
		got, err := env.chats.GetChat(env.ctx, alice, chat.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bob", got.Name)

		got, err = env.chats.GetChat(env.ctx, bob, chat.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Name)
	})

	t.Run("Fail Non Member", func(t *testing.T) {
		_, err := env.chats.GetChat(env.ctx, carol, chat.ID)
		assertAppError(t, err, http.StatusForbidden)
	})

	t.Run("Fail Unknown Chat", func(t *testing.T) {
		_, err := env.chats.GetChat(env.ctx, alice, uuid.New())
		assertAppError(t, err, http.StatusNotFound)
	})
}

func TestAddGroupMembers(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob, carol := env.newUser("Alice"), env.newUser("Bob"), env.newUser("Carol")
		aliceConn := env.connect(alice)
		carolConn := env.connect(carol)

		group, err := env.chats.CreateGroupChat(env.ctx, alice, model.CreateGroupChatRequest{
			Name:      "Design",
			MemberIDs: []uuid.UUID{bob},
		})
		require.NoError(t, err)
		require.NoError(t, env.hub.Join(env.ctx, aliceConn, group.ID))

		updated, err := env.chats.AddGroupMembers(env.ctx, alice, group.ID, model.AddGroupMembersRequest{
			UserIDs: []uuid.UUID{carol, bob},
		})
		require.NoError(t, err)
		assert.Len(t, updated.Members, 3)

		ev := waitFor(t, aliceConn, websocket.EventChatUpdated)
		var view model.ChatResponse
		require.NoError(t, json.Unmarshal(ev.Payload, &view))
		assert.Len(t, view.Members, 3)

		waitFor(t, carolConn, websocket.EventChatCreated)

		_, err = env.messages.GetMessages(env.ctx, carol, model.GetMessagesRequest{ChatID: group.ID, Page: 1})
		assert.NoError(t, err, "new member can read history")
	})

	t.Run("Fail Non Admin", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob, carol := env.newUser("Alice"), env.newUser("Bob"), env.newUser("Carol")

		group, err := env.chats.CreateGroupChat(env.ctx, alice, model.CreateGroupChatRequest{
			Name:      "Design",
			MemberIDs: []uuid.UUID{bob},
		})
		require.NoError(t, err)

		_, err = env.chats.AddGroupMembers(env.ctx, bob, group.ID, model.AddGroupMembersRequest{UserIDs: []uuid.UUID{carol}})
		assertAppError(t, err, http.StatusForbidden)
	})

	t.Run("Fail Direct Chat", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob, carol := env.newUser("Alice"), env.newUser("Bob"), env.newUser("Carol")
		chat := env.connectTwo(t, alice, bob)

		_, err := env.chats.AddGroupMembers(env.ctx, alice, chat.ID, model.AddGroupMembersRequest{UserIDs: []uuid.UUID{carol}})
		assertAppError(t, err, http.StatusBadRequest)
	})
}
