package repository

import (
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/repository/migrations"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TestPostgresRegistrySuite runs the registry suite against a real database
// when DB_DSN is set.
func TestPostgresRegistrySuite(t *testing.T) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "failed to connect to database")
	defer db.Close()

	require.NoError(t, config.Migrate(db, migrations.FS), "failed to migrate database")

	suite.Run(t, &RegistrySuite{
		newRegistry: func() Registry { return NewPostgresRegistry(db) },
		reset: func() {
			_, err := db.Exec("TRUNCATE messages, chat_members, chats, requests")
			require.NoError(t, err, "can't reset database")
		},
	})
}
