package app

import (
	"context"
	"errors"
	"time"

	"flashcard-frenzy/internal/domain"
	"go.uber.org/zap"
)

const maxStartAttempts = 5

// MatchService owns the match lifecycle: start (with pending-match reuse),
// lookup and finish.
type MatchService struct {
	matches   MatchRepository
	publisher MatchPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewMatchService(matches MatchRepository, publisher MatchPublisher, logger *zap.Logger) *MatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchService{matches: matches, publisher: publisher, logger: logger.Named("matches"), now: time.Now}
}

// StartMatch activates the pair's pending match if one exists, otherwise it
// creates a new pending match with playerID as player1. created reports
// which of the two happened.
func (s *MatchService) StartMatch(ctx context.Context, playerID, opponentID string) (match domain.Match, created bool, err error) {
	switch {
	case playerID == "":
		return domain.Match{}, false, &domain.ValidationError{Field: "playerId", Reason: "required"}
	case opponentID == "":
		return domain.Match{}, false, &domain.ValidationError{Field: "opponentId", Reason: "required"}
	case playerID == opponentID:
		return domain.Match{}, false, &domain.ValidationError{Field: "opponentId", Reason: "must differ from playerId"}
	}

	// A concurrent start for the same pair can win the insert; the next
	// pass finds and activates its pending match.
	for attempt := 0; attempt < maxStartAttempts; attempt++ {
		existing, ok, err := s.matches.ActivatePending(ctx, playerID, opponentID)
		if err != nil {
			return domain.Match{}, false, err
		}
		if ok {
			s.logger.Info("pending match activated",
				zap.String("match_id", existing.ID),
				zap.String("player_id", playerID))
			s.publish(ctx, domain.EventMatchStatus, existing)
			return existing, false, nil
		}

		now := s.now()
		fresh, err := s.matches.CreateMatch(ctx, domain.Match{
			Player1:   playerID,
			Player2:   opponentID,
			Status:    domain.MatchPending,
			Round:     1,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if errors.Is(err, domain.ErrPendingMatchExists) {
			continue
		}
		if err != nil {
			return domain.Match{}, false, err
		}
		s.logger.Info("match created",
			zap.String("match_id", fresh.ID),
			zap.String("player1", fresh.Player1),
			zap.String("player2", fresh.Player2))
		s.publish(ctx, domain.EventMatchCreated, fresh)
		return fresh, true, nil
	}
	return domain.Match{}, false, domain.ErrPendingMatchExists
}

func (s *MatchService) GetMatch(ctx context.Context, matchID string) (domain.Match, error) {
	return s.matches.GetMatch(ctx, matchID)
}

func (s *MatchService) ListMatches(ctx context.Context) ([]domain.Match, error) {
	return s.matches.ListMatches(ctx)
}

// FinishMatch marks the match finished. Finishing twice is a no-op.
func (s *MatchService) FinishMatch(ctx context.Context, matchID string) (domain.Match, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	if match.Status == domain.MatchFinished {
		return match, nil
	}
	match, err = s.matches.SetStatus(ctx, matchID, domain.MatchFinished)
	if err != nil {
		return domain.Match{}, err
	}
	s.publish(ctx, domain.EventMatchStatus, match)
	return match, nil
}

func (s *MatchService) publish(ctx context.Context, eventType string, match domain.Match) {
	if s.publisher == nil {
		return
	}
	// The transition is already stored; a dropped request still fans out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultStorageTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, domain.MatchEvent{Type: eventType, Match: match, At: s.now()}); err != nil {
		s.logger.Warn("publish match event failed", zap.String("match_id", match.ID), zap.Error(err))
	}
}
