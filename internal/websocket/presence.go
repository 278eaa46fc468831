package websocket

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type typingEntry struct {
	timer *time.Timer
}

// presenceBook tracks who is online and typing in each room. It has no lock of
// its own; the hub mutates it while holding Hub.mu.
type presenceBook struct {
	online map[uuid.UUID]map[uuid.UUID]int
	typing map[uuid.UUID]map[uuid.UUID]*typingEntry
}

func newPresenceBook() *presenceBook {
	return &presenceBook{
		online: make(map[uuid.UUID]map[uuid.UUID]int),
		typing: make(map[uuid.UUID]map[uuid.UUID]*typingEntry),
	}
}

// markOnline counts one more connection of userID in chatID and reports
// whether the user just came online there.
func (p *presenceBook) markOnline(chatID, userID uuid.UUID) bool {
	users, ok := p.online[chatID]
	if !ok {
		users = make(map[uuid.UUID]int)
		p.online[chatID] = users
	}
	users[userID]++
	return users[userID] == 1
}

// markOffline drops one connection and reports whether it was the user's last
// one in the room.
func (p *presenceBook) markOffline(chatID, userID uuid.UUID) bool {
	users, ok := p.online[chatID]
	if !ok || users[userID] == 0 {
		return false
	}
	users[userID]--
	if users[userID] > 0 {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.online, chatID)
	}
	return true
}

func (p *presenceBook) isOnline(chatID, userID uuid.UUID) bool {
	return p.online[chatID][userID] > 0
}

func (p *presenceBook) onlineUsers(chatID uuid.UUID) []uuid.UUID {
	users := make([]uuid.UUID, 0, len(p.online[chatID]))
	for id := range p.online[chatID] {
		users = append(users, id)
	}
	sortIDs(users)
	return users
}

// startTyping marks userID as typing and arms its idle timer. It reports
// whether the typing set changed; a repeated start only re-arms the timer.
func (p *presenceBook) startTyping(chatID, userID uuid.UUID, timeout time.Duration, expire func(*typingEntry)) bool {
	users, ok := p.typing[chatID]
	if !ok {
		users = make(map[uuid.UUID]*typingEntry)
		p.typing[chatID] = users
	}

	prev, existed := users[userID]
	if existed {
		prev.timer.Stop()
	}

	entry := &typingEntry{}
	entry.timer = time.AfterFunc(timeout, func() { expire(entry) })
	users[userID] = entry
	return !existed
}

func (p *presenceBook) stopTyping(chatID, userID uuid.UUID) bool {
	users, ok := p.typing[chatID]
	if !ok {
		return false
	}
	entry, ok := users[userID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(users, userID)
	if len(users) == 0 {
		delete(p.typing, chatID)
	}
	return true
}

// isCurrent reports whether entry is still the live typing marker, so a timer
// that fired after a restart does not clear the newer one.
func (p *presenceBook) isCurrent(chatID, userID uuid.UUID, entry *typingEntry) bool {
	return p.typing[chatID][userID] == entry
}

func (p *presenceBook) typingUsers(chatID uuid.UUID) []uuid.UUID {
	users := make([]uuid.UUID, 0, len(p.typing[chatID]))
	for id := range p.typing[chatID] {
		users = append(users, id)
	}
	sortIDs(users)
	return users
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
