package repository

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/entity"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound   = errors.New("request does not exist")
	ErrChatNotFound      = errors.New("chat does not exist")
	ErrPairConflict      = errors.New("a request or direct chat already exists for this pair")
	ErrNotInTransaction  = errors.New("operation requires a transaction")
	ErrEmptyMembers      = errors.New("members can't be empty")
	ErrDirectChatMembers = errors.New("direct chats have exactly two fixed members")
)

type AtomicFunc func(Registry) error

// Registry is the transactional entry point to the relationship store. Inside
// Atomic every store returned by the registry shares one transaction.
type Registry interface {
	Atomic(ctx context.Context, fn AtomicFunc) error
	// LockPair serializes transactions touching the same unordered user pair
	// until the surrounding transaction ends.
	LockPair(ctx context.Context, pairKey string) error
	Requests() RequestStore
	Chats() ChatStore
	Messages() MessageStore
}

type RequestStore interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Request, error)
	FindBetween(ctx context.Context, a, b uuid.UUID) (*entity.Request, error)
	// DeleteByID removes the request and returns it, or ErrRequestNotFound
	// when a concurrent transaction consumed it first.
	DeleteByID(ctx context.Context, id uuid.UUID) (*entity.Request, error)
	ListByReceiver(ctx context.Context, userID uuid.UUID) ([]entity.Request, error)
	ListBySender(ctx context.Context, userID uuid.UUID) ([]entity.Request, error)
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

type ChatStore interface {
	Create(ctx context.Context, chat *entity.Chat) error
	// AddMembers ignores users that are already members and returns only the
	// rows that were inserted.
	AddMembers(ctx context.Context, chatID uuid.UUID, members []entity.ChatMember) ([]entity.ChatMember, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Chat, error)
	FindDirectBetween(ctx context.Context, a, b uuid.UUID) (*entity.Chat, error)
	IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]entity.Chat, error)
}

type MessageStore interface {
	// Append assigns the next per-chat seq and a created_at strictly after the
	// previous message of the chat, then persists msg.
	Append(ctx context.Context, msg *entity.Message) error
	// ListPage returns messages newest first.
	ListPage(ctx context.Context, chatID uuid.UUID, offset, limit int) ([]entity.Message, error)
}

type Repository struct {
	Store     Registry
	Session   *SessionRepository
	RateLimit *RateLimitRepository
}

// NewRepository wires the relationship store with the Redis backed
// repositories. Session and RateLimit stay nil when redisAdapter is nil.
func NewRepository(store Registry, redisAdapter *adapter.RedisAdapter) *Repository {
	repo := &Repository{
		Store: store,
	}
	if redisAdapter != nil {
		repo.Session = NewSessionRepository(redisAdapter)
		repo.RateLimit = NewRateLimitRepository(redisAdapter)
	}
	return repo
}
