package memory

import (
	"context"
	"sync"

	"flashcard-frenzy/internal/domain"
)

const feedBuffer = 8

// MatchFeed is an in-process app.MatchPublisher that fans match events out to
// per-match subscribers.
type MatchFeed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.MatchEvent]struct{}
}

func NewMatchFeed() *MatchFeed {
	return &MatchFeed{subscribers: make(map[string]map[chan domain.MatchEvent]struct{})}
}

// Subscribe returns a channel of events for matchID. The caller must invoke
// the returned cancel function to avoid leaks.
func (f *MatchFeed) Subscribe(matchID string) (<-chan domain.MatchEvent, func()) {
	ch := make(chan domain.MatchEvent, feedBuffer)

	f.mu.Lock()
	subs, ok := f.subscribers[matchID]
	if !ok {
		subs = make(map[chan domain.MatchEvent]struct{})
		f.subscribers[matchID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			subs := f.subscribers[matchID]
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			if len(subs) == 0 {
				delete(f.subscribers, matchID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish never blocks: a subscriber that fell behind loses its oldest
// pending event.
func (f *MatchFeed) Publish(_ context.Context, event domain.MatchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[event.Match.ID] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribers reports how many subscribers watch matchID.
func (f *MatchFeed) Subscribers(matchID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[matchID])
}
