package repository

import (
	"CollabChatAPI/internal/adapter"
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// SessionRepository reads the revocation markers the auth service writes to
// Redis. A nil repository treats every token as live.
type SessionRepository struct {
	redisAdapter *adapter.RedisAdapter
}

func NewSessionRepository(redisAdapter *adapter.RedisAdapter) *SessionRepository {
	return &SessionRepository{
		redisAdapter: redisAdapter,
	}
}

func (r *SessionRepository) IsTokenBlacklisted(ctx context.Context, tokenString string) bool {
	if r == nil {
		return false
	}
	key := fmt.Sprintf("blacklist:%s", tokenString)
	val, err := r.redisAdapter.Get(ctx, key)
	return err == nil && val != ""
}

func (r *SessionRepository) IsUserRevoked(ctx context.Context, userID uuid.UUID, tokenIssuedAt int64) bool {
	if r == nil {
		return false
	}
	key := fmt.Sprintf("revoked_user:%s", userID)
	revokedAtStr, err := r.redisAdapter.Get(ctx, key)

	if err != nil || revokedAtStr == "" {
		return false
	}

	revokedAt, _ := strconv.ParseInt(revokedAtStr, 10, 64)

	return tokenIssuedAt <= revokedAt
}
