package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"flashcard-frenzy/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HistoryService derives match history and the winner from the ledger.
type HistoryService struct {
	store   ScoreStore
	logger  *zap.Logger
	timeout time.Duration
}

func NewHistoryService(store ScoreStore, logger *zap.Logger, timeout time.Duration) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultStorageTimeout
	}
	return &HistoryService{store: store, logger: logger.Named("history"), timeout: timeout}
}

// ComputeHistory aggregates the ledger of matchID for the two given players.
func (s *HistoryService) ComputeHistory(ctx context.Context, matchID, player1ID, player2ID string) (domain.History, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	records, err := s.store.ListAnswers(ctx, matchID)
	if err != nil {
		return domain.History{}, fmt.Errorf("list answers for match %s: %w", matchID, err)
	}
	s.logMissing(matchID, records)
	return AggregateHistory(matchID, player1ID, player2ID, records), nil
}

// MatchHistory resolves the players from the match row and aggregates.
func (s *HistoryService) MatchHistory(ctx context.Context, matchID string) (domain.History, error) {
	match, records, err := s.load(ctx, matchID)
	if err != nil {
		return domain.History{}, err
	}
	return AggregateHistory(matchID, match.Player1, match.Player2, records), nil
}

// Summarize builds the end-of-match summary record.
func (s *HistoryService) Summarize(ctx context.Context, matchID string) (domain.MatchHistorySummary, error) {
	match, records, err := s.load(ctx, matchID)
	if err != nil {
		return domain.MatchHistorySummary{}, err
	}
	history := AggregateHistory(matchID, match.Player1, match.Player2, records)
	return Summarize(match, history, records), nil
}

func (s *HistoryService) load(ctx context.Context, matchID string) (domain.Match, []domain.AnswerRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		match   domain.Match
		records []domain.AnswerRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.store.GetMatch(gctx, matchID)
		if err != nil {
			return err
		}
		match = m
		return nil
	})
	g.Go(func() error {
		r, err := s.store.ListAnswers(gctx, matchID)
		if err != nil {
			return fmt.Errorf("list answers for match %s: %w", matchID, err)
		}
		records = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Match{}, nil, err
	}
	s.logMissing(matchID, records)
	return match, records, nil
}

func (s *HistoryService) logMissing(matchID string, records []domain.AnswerRecord) {
	missing := 0
	for _, r := range records {
		if r.Flashcard == nil {
			missing++
		}
	}
	if missing > 0 {
		s.logger.Warn("history rows reference unknown flashcards",
			zap.String("match_id", matchID),
			zap.Int("rows", missing))
	}
}

// AggregateHistory partitions records by player, counts correct answers and
// resolves the winner. Records from other players are ignored. It does not
// reorder records. Correct-answer time is summed in whole milliseconds so the
// totals do not depend on ledger order.
func AggregateHistory(matchID, player1ID, player2ID string, records []domain.AnswerRecord) domain.History {
	h := domain.History{
		MatchID:        matchID,
		Player1Answers: []domain.HistoryEntry{},
		Player2Answers: []domain.HistoryEntry{},
	}
	var ms1, ms2 int64
	for _, r := range records {
		entry := historyEntry(r)
		switch r.PlayerID {
		case player1ID:
			h.Player1Answers = append(h.Player1Answers, entry)
			if r.IsCorrect {
				h.Player1Correct++
				ms1 += millis(r.ResponseTime)
			}
		case player2ID:
			h.Player2Answers = append(h.Player2Answers, entry)
			if r.IsCorrect {
				h.Player2Correct++
				ms2 += millis(r.ResponseTime)
			}
		}
	}
	h.Player1Time = float64(ms1) / 1000
	h.Player2Time = float64(ms2) / 1000
	h.Winner = ResolveWinner(h.Player1Correct, h.Player2Correct, h.Player1Time, h.Player2Time)
	return h
}

// ResolveWinner ranks by correct count, then by lower total response time
// over correct answers, compared at millisecond resolution. Anything else is
// a tie.
func ResolveWinner(correct1, correct2 int, seconds1, seconds2 float64) string {
	time1, time2 := millis(seconds1), millis(seconds2)
	switch {
	case correct1 > correct2:
		return domain.WinnerPlayer1
	case correct2 > correct1:
		return domain.WinnerPlayer2
	case time1 < time2:
		return domain.WinnerPlayer1
	case time2 < time1:
		return domain.WinnerPlayer2
	default:
		return domain.WinnerTie
	}
}

// Summarize folds a match and its aggregated history into a summary.
func Summarize(match domain.Match, history domain.History, records []domain.AnswerRecord) domain.MatchHistorySummary {
	summary := domain.MatchHistorySummary{
		MatchID:   match.ID,
		Player1ID: match.Player1,
		Player2ID: match.Player2,
		Score1:    match.Score1,
		Score2:    match.Score2,
		Winner:    history.Winner,
		CreatedAt: match.CreatedAt,
	}
	switch history.Winner {
	case domain.WinnerPlayer1:
		summary.WinnerID = match.Player1
	case domain.WinnerPlayer2:
		summary.WinnerID = match.Player2
	}

	rounds := make(map[string]struct{})
	for _, r := range records {
		if r.PlayerID != match.Player1 && r.PlayerID != match.Player2 {
			continue
		}
		rounds[r.FlashcardID] = struct{}{}
		if r.CreatedAt.After(summary.CompletedAt) {
			summary.CompletedAt = r.CreatedAt
		}
	}
	if summary.CompletedAt.IsZero() {
		summary.CompletedAt = match.UpdatedAt
	}
	summary.TotalRounds = len(rounds)
	return summary
}

func millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

func historyEntry(r domain.AnswerRecord) domain.HistoryEntry {
	entry := domain.HistoryEntry{
		FlashcardID:  r.FlashcardID,
		WasCorrect:   r.IsCorrect,
		ResponseTime: r.ResponseTime,
		AnsweredAt:   r.CreatedAt,
	}
	if r.Flashcard == nil {
		entry.FlashcardMissing = true
		return entry
	}
	entry.Question = r.Flashcard.Question
	entry.CorrectAnswer = r.Flashcard.Answer
	return entry
}
