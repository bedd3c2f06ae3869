package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"flashcard-frenzy/internal/domain"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of app.ScoreStore,
// app.MatchRepository and app.FlashcardRepository.
type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	matches    map[string]*domain.Match
	flashcards map[string]domain.Flashcard
	answers    map[string][]domain.PlayerAnswer
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		now:        now,
		matches:    make(map[string]*domain.Match),
		flashcards: make(map[string]domain.Flashcard),
		answers:    make(map[string][]domain.PlayerAnswer),
	}
}

func (s *Store) GetMatch(_ context.Context, matchID string) (domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return domain.Match{}, domain.MatchNotFound(matchID)
	}
	return *m, nil
}

func (s *Store) ListMatches(_ context.Context) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateMatch(_ context.Context, match domain.Match) (domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if match.Status == domain.MatchPending {
		if _, ok := s.pendingLocked(match.Player1, match.Player2); ok {
			return domain.Match{}, domain.ErrPendingMatchExists
		}
	}
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	now := s.now()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now
	stored := match
	s.matches[match.ID] = &stored
	return stored, nil
}

func (s *Store) ActivatePending(_ context.Context, playerA, playerB string) (domain.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.pendingLocked(playerA, playerB)
	if !ok {
		return domain.Match{}, false, nil
	}
	m.Status = domain.MatchActive
	m.UpdatedAt = s.now()
	return *m, true, nil
}

func (s *Store) SetStatus(_ context.Context, matchID string, status domain.MatchStatus) (domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return domain.Match{}, domain.MatchNotFound(matchID)
	}
	m.Status = status
	m.UpdatedAt = s.now()
	return *m, nil
}

// IncrementScores applies both deltas under the write lock, so concurrent
// submissions against the same match never overwrite each other.
func (s *Store) IncrementScores(_ context.Context, matchID string, delta1, delta2 int) (domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return domain.Match{}, domain.MatchNotFound(matchID)
	}
	m.Score1 += delta1
	m.Score2 += delta2
	m.UpdatedAt = s.now()
	return *m, nil
}

func (s *Store) AppendAnswer(_ context.Context, answer domain.PlayerAnswer) (domain.PlayerAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = s.now()
	}
	s.answers[answer.MatchID] = append(s.answers[answer.MatchID], answer)
	return answer, nil
}

func (s *Store) ListAnswers(_ context.Context, matchID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.answers[matchID]
	out := make([]domain.AnswerRecord, 0, len(rows))
	for _, a := range rows {
		rec := domain.AnswerRecord{PlayerAnswer: a}
		if card, ok := s.flashcards[a.FlashcardID]; ok {
			rec.Flashcard = &card
		}
		out = append(out, rec)
	}
	// Stable keeps insertion order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetFlashcard(_ context.Context, flashcardID string) (domain.Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.flashcards[flashcardID]
	if !ok {
		return domain.Flashcard{}, domain.FlashcardNotFound(flashcardID)
	}
	return card, nil
}

func (s *Store) ListFlashcards(_ context.Context) ([]domain.Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Flashcard, 0, len(s.flashcards))
	for _, c := range s.flashcards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateFlashcard(_ context.Context, card domain.Flashcard) (domain.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	card.Options = append([]string(nil), card.Options...)
	s.flashcards[card.ID] = card
	return card, nil
}

// DeleteFlashcard removes a card from the bank; ledger rows that reference it
// are kept.
func (s *Store) DeleteFlashcard(_ context.Context, flashcardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flashcards, flashcardID)
}

func (s *Store) pendingLocked(a, b string) (*domain.Match, bool) {
	var found *domain.Match
	for _, m := range s.matches {
		if m.Status != domain.MatchPending || !m.HasPair(a, b) {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) {
			found = m
		}
	}
	return found, found != nil
}
