package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"flashcard-frenzy/internal/domain"
	"go.uber.org/zap"
)

// ForeignPlayerPolicy decides what happens when the submitting player is
// neither player1 nor player2 of the match.
type ForeignPlayerPolicy string

const (
	// RecordForeignPlayers writes the ledger row but leaves scores alone.
	RecordForeignPlayers ForeignPlayerPolicy = "record"
	// RejectForeignPlayers fails with domain.ErrPlayerNotInMatch before any write.
	RejectForeignPlayers ForeignPlayerPolicy = "reject"
)

const defaultStorageTimeout = 3 * time.Second

// ProcessorOptions tunes an AnswerProcessor. Zero values pick defaults.
type ProcessorOptions struct {
	StorageTimeout time.Duration
	ForeignPlayers ForeignPlayerPolicy
	FirstResponder FirstResponderTracker
	Publisher      MatchPublisher
	Observer       AnswerObserver
	Now            func() time.Time
}

// AnswerObserver is told the outcome of every submission that reaches the
// score mutation.
type AnswerObserver interface {
	AnswerScored(result string)
	LedgerAppendFailed()
	ScoreUpdateFailed()
}

type nopObserver struct{}

func (nopObserver) AnswerScored(string) {}
func (nopObserver) LedgerAppendFailed() {}
func (nopObserver) ScoreUpdateFailed() {}

// AnswerProcessor scores submitted answers and appends them to the ledger.
type AnswerProcessor struct {
	store      ScoreStore
	flashcards FlashcardReader
	first      FirstResponderTracker
	publisher  MatchPublisher
	observer   AnswerObserver
	logger     *zap.Logger
	timeout    time.Duration
	policy     ForeignPlayerPolicy
	now        func() time.Time

	ledgerFailures atomic.Int64
}

func NewAnswerProcessor(store ScoreStore, flashcards FlashcardReader, logger *zap.Logger, opts ProcessorOptions) *AnswerProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &AnswerProcessor{
		store:      store,
		flashcards: flashcards,
		first:      opts.FirstResponder,
		publisher:  opts.Publisher,
		observer:   opts.Observer,
		logger:     logger.Named("answers"),
		timeout:    opts.StorageTimeout,
		policy:     opts.ForeignPlayers,
		now:        opts.Now,
	}
	if p.timeout <= 0 {
		p.timeout = defaultStorageTimeout
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	if p.policy == "" {
		p.policy = RecordForeignPlayers
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// IsCorrect compares the selection to the flashcard answer verbatim. An
// empty selection is a timeout and never matches.
func IsCorrect(card domain.Flashcard, selected string) bool {
	return selected != "" && selected == card.Answer
}

// scoreDeltas returns the increments for (score1, score2).
func scoreDeltas(slot int, correct bool) (int, int) {
	if !correct {
		return 0, 0
	}
	switch slot {
	case 1:
		return 1, 0
	case 2:
		return 0, 1
	default:
		return 0, 0
	}
}

// SubmitAnswer scores one answer. The score mutation is fatal on failure;
// the ledger append is not, and a failed append is logged and counted.
func (p *AnswerProcessor) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if sub.TimeTaken < 0 {
		return domain.AnswerResult{}, &domain.ValidationError{Field: "timeTaken", Reason: "must not be negative"}
	}
	match, err := p.getMatch(ctx, sub.MatchID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	card, err := p.getFlashcard(ctx, sub.FlashcardID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	slot := match.Slot(sub.PlayerID)
	if slot == 0 && p.policy == RejectForeignPlayers {
		return domain.AnswerResult{}, domain.ErrPlayerNotInMatch
	}

	correct := IsCorrect(card, sub.SelectedOption)
	d1, d2 := scoreDeltas(slot, correct)

	updated, err := p.incrementScores(ctx, match.ID, d1, d2)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	answer := domain.PlayerAnswer{
		MatchID:      match.ID,
		PlayerID:     sub.PlayerID,
		FlashcardID:  card.ID,
		IsCorrect:    correct,
		ResponseTime: sub.TimeTaken,
		CreatedAt:    p.now(),
	}
	recorded, appended := p.appendAnswer(ctx, answer)

	first := false
	if correct && slot != 0 && p.first != nil {
		first, err = p.first.MarkFirst(ctx, match.ID, card.ID, sub.PlayerID)
		if err != nil {
			p.logger.Warn("first responder mark failed",
				zap.String("match_id", match.ID),
				zap.String("flashcard_id", card.ID),
				zap.Error(err))
			first = false
		}
	}

	event := domain.MatchEvent{Type: domain.EventAnswerScored, Match: updated, At: p.now()}
	if appended {
		event.Answer = &recorded
	}
	p.publish(ctx, event)

	tag := domain.ResultWrong
	if correct {
		tag = domain.ResultCorrect
	}
	p.observer.AnswerScored(tag)
	return domain.AnswerResult{
		Correct:        correct,
		CorrectOption:  card.Answer,
		ResultTag:      tag,
		Scores:         domain.ScorePair{Player1: updated.Score1, Player2: updated.Score2},
		FirstResponder: first,
	}, nil
}

// LedgerAppendFailures is the number of answers whose score was applied but
// whose ledger row could not be written.
func (p *AnswerProcessor) LedgerAppendFailures() int64 {
	return p.ledgerFailures.Load()
}

func (p *AnswerProcessor) getMatch(ctx context.Context, matchID string) (domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	match, err := p.store.GetMatch(ctx, matchID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Match{}, err
		}
		return domain.Match{}, fmt.Errorf("load match %s: %w", matchID, err)
	}
	return match, nil
}

func (p *AnswerProcessor) getFlashcard(ctx context.Context, flashcardID string) (domain.Flashcard, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	card, err := p.flashcards.GetFlashcard(ctx, flashcardID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Flashcard{}, err
		}
		return domain.Flashcard{}, fmt.Errorf("load flashcard %s: %w", flashcardID, err)
	}
	return card, nil
}

func (p *AnswerProcessor) incrementScores(ctx context.Context, matchID string, d1, d2 int) (domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	updated, err := p.store.IncrementScores(ctx, matchID, d1, d2)
	if err != nil {
		if errors.Is(err, domain.ErrMatchNotFound) {
			return domain.Match{}, err
		}
		p.observer.ScoreUpdateFailed()
		p.logger.Error("score update failed", zap.String("match_id", matchID), zap.Error(err))
		return domain.Match{}, &domain.ScoreUpdateError{MatchID: matchID, Err: err}
	}
	return updated, nil
}

// appendAnswer runs detached from the caller's cancellation: once the score
// is written the ledger row should follow even if the client went away.
func (p *AnswerProcessor) appendAnswer(ctx context.Context, answer domain.PlayerAnswer) (domain.PlayerAnswer, bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	recorded, err := p.store.AppendAnswer(ctx, answer)
	if err != nil {
		total := p.ledgerFailures.Add(1)
		p.observer.LedgerAppendFailed()
		p.logger.Error("ledger append failed after score update; match scores and ledger diverge",
			zap.String("match_id", answer.MatchID),
			zap.String("player_id", answer.PlayerID),
			zap.String("flashcard_id", answer.FlashcardID),
			zap.Bool("is_correct", answer.IsCorrect),
			zap.Int64("ledger_failures_total", total),
			zap.Error(err))
		return answer, false
	}
	return recorded, true
}

func (p *AnswerProcessor) publish(ctx context.Context, event domain.MatchEvent) {
	if p.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("publish match event failed",
			zap.String("match_id", event.Match.ID),
			zap.String("type", event.Type),
			zap.Error(err))
	}
}
