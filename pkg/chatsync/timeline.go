// Package chatsync keeps a client's view of one chat consistent while history
// pages and live pushes arrive in any order.
package chatsync

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrStale is returned for fetch results issued before the current chat
// selection. They must be dropped.
var ErrStale = errors.New("chatsync: stale fetch result")

type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Seq       int64     `json:"seq"`
	Content   string    `json:"content"`
	CreatedAt string    `json:"created_at"`
	ClientRef string    `json:"client_ref,omitempty"`
}

// Page is one history page, newest first.
type Page struct {
	Messages    []Message
	Page        int
	HasNextPage bool
}

// Generation identifies a chat selection. Every Select starts a new one.
type Generation uint64

// Cursor tracks paging for the selected chat. Page is the last page requested.
type Cursor struct {
	Page        int
	HasNextPage bool
	Loading     bool
}

// Timeline holds the messages of the selected chat, newest first, with no
// duplicate ids.
type Timeline struct {
	mu         sync.Mutex
	chatID     uuid.UUID
	generation Generation
	messages   []Message
	seen       map[uuid.UUID]bool
	cursor     Cursor
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[uuid.UUID]bool)}
}

// Select switches to chatID, clearing messages and the seen set. The cursor is
// reset to page 1 and marked loading, since the caller fetches it next.
func (t *Timeline) Select(chatID uuid.UUID) Generation {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	t.chatID = chatID
	t.messages = nil
	t.seen = make(map[uuid.UUID]bool)
	t.cursor = Cursor{Page: 1, Loading: true}
	return t.generation
}

func (t *Timeline) ChatID() uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chatID
}

func (t *Timeline) Generation() Generation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

func (t *Timeline) Cursor() Cursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// NextPage reserves the next older page. It reports false when there is none
// or a fetch is already running.
func (t *Timeline) NextPage() (int, Generation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.cursor.HasNextPage || t.cursor.Loading {
		return 0, t.generation, false
	}
	t.cursor.Page++
	t.cursor.Loading = true
	return t.cursor.Page, t.generation, true
}

// ApplyPage merges the unseen messages of page by seq. Older pages land after
// the oldest message held. It returns how many were added.
func (t *Timeline) ApplyPage(gen Generation, page Page) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		return 0, ErrStale
	}

	added := 0
	for _, m := range page.Messages {
		if t.seen[m.ID] {
			continue
		}
		t.seen[m.ID] = true
		t.insert(m)
		added++
	}

	t.cursor = Cursor{Page: page.Page, HasNextPage: page.HasNextPage}
	return added, nil
}

// FailFetch releases the page reserved for gen so it can be requested again.
func (t *Timeline) FailFetch(gen Generation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || !t.cursor.Loading {
		return
	}
	t.cursor.Loading = false
	if t.cursor.HasNextPage && t.cursor.Page > 1 {
		t.cursor.Page--
	}
}

// ApplyLive inserts a pushed message at its seq position, which is the newest
// end unless pushes arrived out of order. Messages of other chats and ids
// already held are ignored.
func (t *Timeline) ApplyLive(m Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m.ChatID != t.chatID || t.seen[m.ID] {
		return false
	}
	t.seen[m.ID] = true
	t.insert(m)
	return true
}

// insert keeps messages ordered by descending seq; equal seqs keep arrival order.
func (t *Timeline) insert(m Message) {
	i := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].Seq < m.Seq
	})
	t.messages = slices.Insert(t.messages, i, m)
}

// Messages returns a copy, newest first.
func (t *Timeline) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}
