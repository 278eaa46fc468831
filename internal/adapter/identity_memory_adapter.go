package adapter

import (
	"CollabChatAPI/internal/model"
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is used with the memory store driver. It learns profiles
// from verified tokens and from Put.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.UserSummary
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users: make(map[uuid.UUID]model.UserSummary),
	}
}

func (d *MemoryDirectory) Put(users ...model.UserSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range users {
		d.users[u.ID] = u
	}
}

func (d *MemoryDirectory) Record(user model.UserSummary) {
	d.Put(user)
}

func (d *MemoryDirectory) ResolveUser(ctx context.Context, userID uuid.UUID) (*model.UserSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *MemoryDirectory) ResolveUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.UserSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make(map[uuid.UUID]model.UserSummary, len(userIDs))
	for _, id := range userIDs {
		if u, ok := d.users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}
