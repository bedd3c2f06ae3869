package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flashcard-frenzy/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	uniqueViolation     = "23505"
	pendingPairIndex    = "matches_pending_pair_idx"
	matchColumns        = `id, player1, player2, score1, score2, status, round, created_at, updated_at`
	playerAnswerColumns = `id, match_id, player_id, flashcard_id, is_correct, response_time, created_at`
)

// Store is the Postgres-backed match, ledger and flashcard store.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Connect opens a pool for url.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (domain.Match, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id=$1`, matchID)
	return scanMatch(row, matchID)
}

func (s *Store) ListMatches(ctx context.Context) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CreateMatch(ctx context.Context, match domain.Match) (domain.Match, error) {
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	now := s.now()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now

	row := s.pool.QueryRow(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+matchColumns,
		match.ID, match.Player1, match.Player2, match.Score1, match.Score2,
		string(match.Status), match.Round, match.CreatedAt, match.UpdatedAt)
	created, err := scanMatch(row, match.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == pendingPairIndex {
		return domain.Match{}, domain.ErrPendingMatchExists
	}
	return created, err
}

// ActivatePending claims the oldest pending match for the pair. SKIP LOCKED
// lets a concurrent claimer move on instead of activating the same row.
func (s *Store) ActivatePending(ctx context.Context, playerA, playerB string) (domain.Match, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE matches SET status=$3, updated_at=$4
		WHERE id = (
			SELECT id FROM matches
			WHERE status=$5
			  AND ((player1=$1 AND player2=$2) OR (player1=$2 AND player2=$1))
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+matchColumns,
		playerA, playerB, string(domain.MatchActive), s.now(), string(domain.MatchPending))
	m, err := scanMatch(row, "")
	if domain.IsNotFound(err) {
		return domain.Match{}, false, nil
	}
	if err != nil {
		return domain.Match{}, false, err
	}
	return m, true, nil
}

func (s *Store) SetStatus(ctx context.Context, matchID string, status domain.MatchStatus) (domain.Match, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE matches SET status=$2, updated_at=$3 WHERE id=$1 RETURNING `+matchColumns,
		matchID, string(status), s.now())
	return scanMatch(row, matchID)
}

// IncrementScores adds the deltas in one statement so concurrent
// submissions serialize on the row lock.
func (s *Store) IncrementScores(ctx context.Context, matchID string, delta1, delta2 int) (domain.Match, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE matches SET score1=score1+$2, score2=score2+$3, updated_at=$4
		WHERE id=$1
		RETURNING `+matchColumns,
		matchID, delta1, delta2, s.now())
	return scanMatch(row, matchID)
}

func (s *Store) AppendAnswer(ctx context.Context, answer domain.PlayerAnswer) (domain.PlayerAnswer, error) {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = s.now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_answers (`+playerAnswerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		answer.ID, answer.MatchID, answer.PlayerID, answer.FlashcardID,
		answer.IsCorrect, answer.ResponseTime, answer.CreatedAt)
	if err != nil {
		return domain.PlayerAnswer{}, fmt.Errorf("insert player answer: %w", err)
	}
	return answer, nil
}

func (s *Store) ListAnswers(ctx context.Context, matchID string) ([]domain.AnswerRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pa.id, pa.match_id, pa.player_id, pa.flashcard_id, pa.is_correct,
		       pa.response_time, pa.created_at,
		       f.id, COALESCE(f.question, ''), COALESCE(f.options, '{}'), COALESCE(f.answer, '')
		FROM player_answers pa
		LEFT JOIN flashcards f ON f.id = pa.flashcard_id
		WHERE pa.match_id=$1
		ORDER BY pa.created_at, pa.id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list player answers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AnswerRecord, 0)
	for rows.Next() {
		var (
			rec    domain.AnswerRecord
			cardID *string
			card   domain.Flashcard
		)
		if err := rows.Scan(
			&rec.ID, &rec.MatchID, &rec.PlayerID, &rec.FlashcardID, &rec.IsCorrect,
			&rec.ResponseTime, &rec.CreatedAt,
			&cardID, &card.Question, &card.Options, &card.Answer,
		); err != nil {
			return nil, fmt.Errorf("scan player answer: %w", err)
		}
		if cardID != nil {
			card.ID = *cardID
			rec.Flashcard = &card
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetFlashcard(ctx context.Context, flashcardID string) (domain.Flashcard, error) {
	var card domain.Flashcard
	err := s.pool.QueryRow(ctx,
		`SELECT id, question, options, answer FROM flashcards WHERE id=$1`, flashcardID).
		Scan(&card.ID, &card.Question, &card.Options, &card.Answer)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Flashcard{}, domain.FlashcardNotFound(flashcardID)
	}
	if err != nil {
		return domain.Flashcard{}, fmt.Errorf("load flashcard: %w", err)
	}
	return card, nil
}

func (s *Store) ListFlashcards(ctx context.Context) ([]domain.Flashcard, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, question, options, answer FROM flashcards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Flashcard, 0)
	for rows.Next() {
		var card domain.Flashcard
		if err := rows.Scan(&card.ID, &card.Question, &card.Options, &card.Answer); err != nil {
			return nil, fmt.Errorf("scan flashcard: %w", err)
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

// CreateFlashcard upserts by id, so reseeding a bank is safe.
func (s *Store) CreateFlashcard(ctx context.Context, card domain.Flashcard) (domain.Flashcard, error) {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.Options == nil {
		card.Options = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO flashcards (id, question, options, answer)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET question=EXCLUDED.question, options=EXCLUDED.options, answer=EXCLUDED.answer`,
		card.ID, card.Question, card.Options, card.Answer)
	if err != nil {
		return domain.Flashcard{}, fmt.Errorf("upsert flashcard: %w", err)
	}
	return card, nil
}

func scanMatch(row pgx.Row, matchID string) (domain.Match, error) {
	var (
		m      domain.Match
		status string
	)
	err := row.Scan(&m.ID, &m.Player1, &m.Player2, &m.Score1, &m.Score2, &status, &m.Round, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, domain.MatchNotFound(matchID)
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("scan match: %w", err)
	}
	m.Status = domain.MatchStatus(status)
	return m, nil
}
