package repository

import (
	"CollabChatAPI/internal/entity"
	"CollabChatAPI/internal/helper"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryState struct {
	requests      map[uuid.UUID]entity.Request
	requestByPair map[string]uuid.UUID
	chats         map[uuid.UUID]entity.Chat
	chatByPair    map[string]uuid.UUID
	messages      map[uuid.UUID][]entity.Message
}

func newMemoryState() *memoryState {
	return &memoryState{
		requests:      make(map[uuid.UUID]entity.Request),
		requestByPair: make(map[string]uuid.UUID),
		chats:         make(map[uuid.UUID]entity.Chat),
		chatByPair:    make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID][]entity.Message),
	}
}

// clone copies the indexes. Chat member slices and message logs are shared
// and must only be grown through copies.
func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		requests:      make(map[uuid.UUID]entity.Request, len(s.requests)),
		requestByPair: make(map[string]uuid.UUID, len(s.requestByPair)),
		chats:         make(map[uuid.UUID]entity.Chat, len(s.chats)),
		chatByPair:    make(map[string]uuid.UUID, len(s.chatByPair)),
		messages:      make(map[uuid.UUID][]entity.Message, len(s.messages)),
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.requestByPair {
		c.requestByPair[k] = v
	}
	for k, v := range s.chats {
		c.chats[k] = v
	}
	for k, v := range s.chatByPair {
		c.chatByPair[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v[:len(v):len(v)]
	}
	return c
}

// MemoryRegistry keeps the relationship store in process. Transactions are
// serialized by one mutex and work on a copy that replaces the committed state
// only when the callback succeeds.
type MemoryRegistry struct {
	mu    *sync.Mutex
	state **memoryState
	tx    *memoryState
	now   func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	state := newMemoryState()
	return &MemoryRegistry{
		mu:    &sync.Mutex{},
		state: &state,
		now:   time.Now,
	}
}

// SetClock replaces the time source. Call it before the registry is shared.
func (r *MemoryRegistry) SetClock(now func() time.Time) {
	r.now = now
}

func (r *MemoryRegistry) Atomic(ctx context.Context, fn AtomicFunc) error {
	if r.tx != nil {
		return fn(r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	working := (*r.state).clone()
	err := fn(&MemoryRegistry{
		mu:    r.mu,
		state: r.state,
		tx:    working,
		now:   r.now,
	})
	if err != nil {
		return err
	}
	*r.state = working
	return nil
}

func (r *MemoryRegistry) LockPair(ctx context.Context, pairKey string) error {
	if r.tx == nil {
		return ErrNotInTransaction
	}
	return nil
}

func (r *MemoryRegistry) Requests() RequestStore {
	return &memoryRequestStore{r}
}

func (r *MemoryRegistry) Chats() ChatStore {
	return &memoryChatStore{r}
}

func (r *MemoryRegistry) Messages() MessageStore {
	return &memoryMessageStore{r}
}

// with runs fn against the transaction state, or against the committed state
// under the mutex when called outside Atomic.
func (r *MemoryRegistry) with(fn func(st *memoryState) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(*r.state)
}

func (r *MemoryRegistry) clock() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

type memoryRequestStore struct {
	r *MemoryRegistry
}

func (s *memoryRequestStore) Create(ctx context.Context, req *entity.Request) error {
	return s.r.with(func(st *memoryState) error {
		key := helper.PairKey(req.SenderID, req.ReceiverID)
		if _, ok := st.requestByPair[key]; ok {
			return ErrPairConflict
		}
		if req.ID == uuid.Nil {
			req.ID = uuid.New()
		}
		req.PairKey = key
		req.CreatedAt = s.r.clock()
		st.requests[req.ID] = *req
		st.requestByPair[key] = req.ID
		return nil
	})
}

func (s *memoryRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*entity.Request, error) {
	var out *entity.Request
	err := s.r.with(func(st *memoryState) error {
		req, ok := st.requests[id]
		if !ok {
			return ErrRequestNotFound
		}
		out = &req
		return nil
	})
	return out, err
}

func (s *memoryRequestStore) FindBetween(ctx context.Context, a, b uuid.UUID) (*entity.Request, error) {
	var out *entity.Request
	err := s.r.with(func(st *memoryState) error {
		id, ok := st.requestByPair[helper.PairKey(a, b)]
		if !ok {
			return ErrRequestNotFound
		}
		req := st.requests[id]
		out = &req
		return nil
	})
	return out, err
}

func (s *memoryRequestStore) DeleteByID(ctx context.Context, id uuid.UUID) (*entity.Request, error) {
	var out *entity.Request
	err := s.r.with(func(st *memoryState) error {
		req, ok := st.requests[id]
		if !ok {
			return ErrRequestNotFound
		}
		delete(st.requests, id)
		delete(st.requestByPair, req.PairKey)
		out = &req
		return nil
	})
	return out, err
}

func (s *memoryRequestStore) ListByReceiver(ctx context.Context, userID uuid.UUID) ([]entity.Request, error) {
	return s.list(func(req entity.Request) bool { return req.ReceiverID == userID })
}

func (s *memoryRequestStore) ListBySender(ctx context.Context, userID uuid.UUID) ([]entity.Request, error) {
	return s.list(func(req entity.Request) bool { return req.SenderID == userID })
}

func (s *memoryRequestStore) list(match func(entity.Request) bool) ([]entity.Request, error) {
	out := []entity.Request{}
	err := s.r.with(func(st *memoryState) error {
		for _, req := range st.requests {
			if match(req) {
				out = append(out, req)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, err
}

func (s *memoryRequestStore) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.r.with(func(st *memoryState) error {
		for id, req := range st.requests {
			if req.CreatedAt.Before(before) {
				delete(st.requests, id)
				delete(st.requestByPair, req.PairKey)
				n++
			}
		}
		return nil
	})
	return n, err
}

type memoryChatStore struct {
	r *MemoryRegistry
}

func (s *memoryChatStore) Create(ctx context.Context, chat *entity.Chat) error {
	if len(chat.Members) == 0 {
		return ErrEmptyMembers
	}
	if !chat.IsGroup && len(chat.Members) != 2 {
		return ErrDirectChatMembers
	}
	return s.r.with(func(st *memoryState) error {
		var key string
		if !chat.IsGroup {
			key = helper.PairKey(chat.Members[0].UserID, chat.Members[1].UserID)
			if _, ok := st.chatByPair[key]; ok {
				return ErrPairConflict
			}
			chat.DirectPairKey = &key
		}
		if chat.ID == uuid.Nil {
			chat.ID = uuid.New()
		}
		chat.CreatedAt = s.r.clock()
		for i := range chat.Members {
			chat.Members[i].ChatID = chat.ID
			chat.Members[i].JoinedAt = chat.CreatedAt
			if chat.Members[i].Role == "" {
				chat.Members[i].Role = entity.RoleMember
			}
		}
		st.chats[chat.ID] = chat.Clone()
		if !chat.IsGroup {
			st.chatByPair[key] = chat.ID
		}
		return nil
	})
}

func (s *memoryChatStore) AddMembers(ctx context.Context, chatID uuid.UUID, members []entity.ChatMember) ([]entity.ChatMember, error) {
	if len(members) == 0 {
		return nil, ErrEmptyMembers
	}
	added := []entity.ChatMember{}
	err := s.r.with(func(st *memoryState) error {
		chat, ok := st.chats[chatID]
		if !ok {
			return ErrChatNotFound
		}
		chat = chat.Clone()
		joinedAt := s.r.clock()
		for _, m := range members {
			if chat.HasMember(m.UserID) {
				continue
			}
			m.ChatID = chatID
			m.JoinedAt = joinedAt
			if m.Role == "" {
				m.Role = entity.RoleMember
			}
			chat.Members = append(chat.Members, m)
			added = append(added, m)
		}
		st.chats[chatID] = chat
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *memoryChatStore) GetByID(ctx context.Context, id uuid.UUID) (*entity.Chat, error) {
	var out *entity.Chat
	err := s.r.with(func(st *memoryState) error {
		chat, ok := st.chats[id]
		if !ok {
			return ErrChatNotFound
		}
		chat = chat.Clone()
		out = &chat
		return nil
	})
	return out, err
}

func (s *memoryChatStore) FindDirectBetween(ctx context.Context, a, b uuid.UUID) (*entity.Chat, error) {
	var out *entity.Chat
	err := s.r.with(func(st *memoryState) error {
		id, ok := st.chatByPair[helper.PairKey(a, b)]
		if !ok {
			return ErrChatNotFound
		}
		chat := st.chats[id].Clone()
		out = &chat
		return nil
	})
	return out, err
}

func (s *memoryChatStore) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var isMember bool
	err := s.r.with(func(st *memoryState) error {
		chat, ok := st.chats[chatID]
		if !ok {
			return ErrChatNotFound
		}
		isMember = chat.HasMember(userID)
		return nil
	})
	return isMember, err
}

func (s *memoryChatStore) ListByMember(ctx context.Context, userID uuid.UUID) ([]entity.Chat, error) {
	out := []entity.Chat{}
	err := s.r.with(func(st *memoryState) error {
		for _, chat := range st.chats {
			if chat.HasMember(userID) {
				out = append(out, chat.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		ai, aj := activityAt(out[i]), activityAt(out[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, err
}

func activityAt(c entity.Chat) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

type memoryMessageStore struct {
	r *MemoryRegistry
}

func (s *memoryMessageStore) Append(ctx context.Context, msg *entity.Message) error {
	return s.r.with(func(st *memoryState) error {
		chat, ok := st.chats[msg.ChatID]
		if !ok {
			return ErrChatNotFound
		}
		if msg.ID == uuid.Nil {
			msg.ID = uuid.New()
		}

		createdAt := s.r.clock()
		if chat.LastMessageAt != nil && !createdAt.After(*chat.LastMessageAt) {
			createdAt = chat.LastMessageAt.Add(time.Microsecond)
		}

		chat.LastSeq++
		chat.LastMessageAt = &createdAt
		msg.Seq = chat.LastSeq
		msg.CreatedAt = createdAt

		st.chats[chat.ID] = chat
		st.messages[chat.ID] = append(st.messages[chat.ID], *msg)
		return nil
	})
}

func (s *memoryMessageStore) ListPage(ctx context.Context, chatID uuid.UUID, offset, limit int) ([]entity.Message, error) {
	out := []entity.Message{}
	if offset < 0 || limit <= 0 {
		return out, nil
	}
	err := s.r.with(func(st *memoryState) error {
		log := st.messages[chatID]
		for i := len(log) - 1 - offset; i >= 0 && len(out) < limit; i-- {
			out = append(out, log[i])
		}
		return nil
	})
	return out, err
}
