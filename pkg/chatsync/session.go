package chatsync

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type PageFetcher interface {
	FetchPage(ctx context.Context, chatID uuid.UUID, page, pageSize int) (*Page, error)
}

// Session drives a Timeline from a PageFetcher. Selecting another chat cancels
// the fetch in flight, and a result that still arrives is discarded.
type Session struct {
	fetcher  PageFetcher
	pageSize int
	timeline *Timeline
	scroll   *ScrollTracker

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSession(fetcher PageFetcher, pageSize int) *Session {
	return &Session{
		fetcher:  fetcher,
		pageSize: pageSize,
		timeline: NewTimeline(),
		scroll:   NewScrollTracker(),
	}
}

func (s *Session) Timeline() *Timeline {
	return s.timeline
}

func (s *Session) Scroll() *ScrollTracker {
	return s.scroll
}

// Select resets the timeline for chatID and loads its newest page.
func (s *Session) Select(ctx context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	gen := s.timeline.Select(chatID)
	if s.cancel != nil {
		s.cancel()
	}
	s.scroll.Reset()
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	return s.fetch(fetchCtx, cancel, gen, chatID, 1)
}

// LoadOlder fetches the next older page. It is a no-op when the cursor has no
// next page or a fetch is running.
func (s *Session) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	page, gen, ok := s.timeline.NextPage()
	if !ok {
		s.mu.Unlock()
		return nil
	}
	chatID := s.timeline.ChatID()
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	return s.fetch(fetchCtx, cancel, gen, chatID, page)
}

// Receive applies a live message.
func (s *Session) Receive(m Message) bool {
	return s.timeline.ApplyLive(m)
}

// Close cancels the fetch in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) fetch(ctx context.Context, cancel context.CancelFunc, gen Generation, chatID uuid.UUID, page int) error {
	defer cancel()

	result, err := s.fetcher.FetchPage(ctx, chatID, page, s.pageSize)
	if err != nil {
		if s.timeline.Generation() != gen {
			return ErrStale
		}
		s.timeline.FailFetch(gen)
		return err
	}

	if result.Page == 0 {
		result.Page = page
	}
	_, err = s.timeline.ApplyPage(gen, *result)
	return err
}
