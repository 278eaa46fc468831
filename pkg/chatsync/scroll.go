package chatsync

import "sync"

// AutoScrollThreshold is how close to the newest message, in viewport units,
// the reader must be for an update to scroll the view.
const AutoScrollThreshold = 100

// Viewport is the scroll state measured before an update is rendered.
type Viewport struct {
	ScrollHeight float64
	ScrollTop    float64
	ClientHeight float64
}

func (v Viewport) DistanceFromNewest() float64 {
	return v.ScrollHeight - v.ScrollTop - v.ClientHeight
}

// ScrollTracker decides whether rendering an update should jump to the newest
// message. The first non-empty render after Reset always does. Safe for
// concurrent use.
type ScrollTracker struct {
	mu        sync.Mutex
	initial   bool
	threshold float64
}

func NewScrollTracker() *ScrollTracker {
	return &ScrollTracker{initial: true, threshold: AutoScrollThreshold}
}

func (s *ScrollTracker) Reset() {
	s.mu.Lock()
	s.initial = true
	s.mu.Unlock()
}

func (s *ScrollTracker) ShouldAutoScroll(before Viewport, messageCount int) bool {
	if messageCount == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initial {
		s.initial = false
		return true
	}
	return before.DistanceFromNewest() < s.threshold
}
