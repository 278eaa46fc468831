package adapter

import (
	"CollabChatAPI/internal/model"
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

// IdentityDirectory resolves user ids to public profile summaries. Profiles are
// owned by another service; this side only reads them.
type IdentityDirectory interface {
	ResolveUser(ctx context.Context, userID uuid.UUID) (*model.UserSummary, error)
	// ResolveUsers skips unknown ids instead of failing.
	ResolveUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.UserSummary, error)
}

// UserRecorder is implemented by directories that learn profiles from verified
// tokens instead of reading them from the profile service.
type UserRecorder interface {
	Record(user model.UserSummary)
}
