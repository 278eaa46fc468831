package adapter

import (
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/repository/migrations"
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDirectory(t *testing.T) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "failed to connect to database")
	defer db.Close()

	require.NoError(t, config.Migrate(db, migrations.FS), "failed to migrate database")

	ctx := context.Background()
	alice, gone, unknown := uuid.New(), uuid.New(), uuid.New()
	_, err = db.Exec(`INSERT INTO users (id, full_name, avatar_url) VALUES ($1, 'Alice', 'https://cdn.test/a.png')`, alice)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, full_name, deleted_at) VALUES ($1, 'Gone', now())`, gone)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM users WHERE id = ANY($1::uuid[])`, "{"+alice.String()+","+gone.String()+"}")
	})

	dir := NewPostgresDirectory(db, nil, 0)

	t.Run("Resolve User", func(t *testing.T) {
		u, err := dir.ResolveUser(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "Alice", u.DisplayName)
		assert.Equal(t, "https://cdn.test/a.png", u.AvatarURL)
	})

	t.Run("Resolve Users Skips Unknown And Deleted", func(t *testing.T) {
		users, err := dir.ResolveUsers(ctx, []uuid.UUID{alice, gone, unknown})
		require.NoError(t, err)
		assert.Len(t, users, 1)
		assert.Contains(t, users, alice)
	})

	t.Run("Fail Unknown User", func(t *testing.T) {
		_, err := dir.ResolveUser(ctx, unknown)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
