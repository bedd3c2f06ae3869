package app

import (
	"context"
	"errors"

	"flashcard-frenzy/internal/domain"
)

// ScoreStore is the storage collaborator behind scoring and history.
// IncrementScores must apply both deltas atomically with respect to other
// calls for the same match and return the row as written.
type ScoreStore interface {
	GetMatch(ctx context.Context, matchID string) (domain.Match, error)
	IncrementScores(ctx context.Context, matchID string, delta1, delta2 int) (domain.Match, error)
	AppendAnswer(ctx context.Context, answer domain.PlayerAnswer) (domain.PlayerAnswer, error)
	// ListAnswers returns ledger rows ordered by creation time ascending,
	// each joined with its flashcard when it still exists.
	ListAnswers(ctx context.Context, matchID string) ([]domain.AnswerRecord, error)
}

// FlashcardReader resolves flashcards (directly or through a cache).
type FlashcardReader interface {
	GetFlashcard(ctx context.Context, flashcardID string) (domain.Flashcard, error)
}

// FlashcardRepository is the question bank.
type FlashcardRepository interface {
	FlashcardReader
	ListFlashcards(ctx context.Context) ([]domain.Flashcard, error)
	CreateFlashcard(ctx context.Context, card domain.Flashcard) (domain.Flashcard, error)
}

// MatchRepository covers the match lifecycle outside of scoring.
type MatchRepository interface {
	GetMatch(ctx context.Context, matchID string) (domain.Match, error)
	// ListMatches returns every match oldest first, ties broken by id.
	ListMatches(ctx context.Context) ([]domain.Match, error)
	// CreateMatch returns domain.ErrPendingMatchExists when the pair already
	// has a pending match.
	CreateMatch(ctx context.Context, match domain.Match) (domain.Match, error)
	// ActivatePending atomically moves the pair's pending match (either
	// player order) to active. ok is false when there is none.
	ActivatePending(ctx context.Context, playerA, playerB string) (match domain.Match, ok bool, err error)
	SetStatus(ctx context.Context, matchID string, status domain.MatchStatus) (domain.Match, error)
}

// FirstResponderTracker remembers the first player to answer a flashcard
// correctly within a match. MarkFirst reports whether playerID won the mark.
type FirstResponderTracker interface {
	MarkFirst(ctx context.Context, matchID, flashcardID, playerID string) (bool, error)
}

// MatchPublisher delivers match change events to whoever watches a match
// (websocket clients, other instances, downstream consumers).
type MatchPublisher interface {
	Publish(ctx context.Context, event domain.MatchEvent) error
}

// Publishers fans an event out to every publisher and joins their errors.
type Publishers []MatchPublisher

func (ps Publishers) Publish(ctx context.Context, event domain.MatchEvent) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
