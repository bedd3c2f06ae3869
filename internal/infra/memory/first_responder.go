package memory

import (
	"context"
	"sync"
)

// FirstResponderTracker keeps the first correct responder per
// (match, flashcard) in process memory.
type FirstResponderTracker struct {
	mu    sync.Mutex
	marks map[string]string
}

func NewFirstResponderTracker() *FirstResponderTracker {
	return &FirstResponderTracker{marks: make(map[string]string)}
}

func (t *FirstResponderTracker) MarkFirst(_ context.Context, matchID, flashcardID, playerID string) (bool, error) {
	key := matchID + "/" + flashcardID
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.marks[key]; ok {
		return false, nil
	}
	t.marks[key] = playerID
	return true, nil
}

// FirstResponder returns the recorded player, if any.
func (t *FirstResponderTracker) FirstResponder(matchID, flashcardID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.marks[matchID+"/"+flashcardID]
	return p, ok
}
