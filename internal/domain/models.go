package domain

import "time"

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchActive   MatchStatus = "active"
	MatchFinished MatchStatus = "finished"
)

// Match is a two-player contest. Score1/Score2 are a running cache of the
// correct answers recorded in the PlayerAnswer ledger.
type Match struct {
	ID        string      `json:"id"`
	Player1   string      `json:"player1"`
	Player2   string      `json:"player2"`
	Score1    int         `json:"score1"`
	Score2    int         `json:"score2"`
	Status    MatchStatus `json:"status"`
	Round     int         `json:"round"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Slot reports which score slot playerID owns: 1, 2, or 0 when the player
// is not registered in the match.
func (m Match) Slot(playerID string) int {
	switch playerID {
	case m.Player1:
		return 1
	case m.Player2:
		return 2
	default:
		return 0
	}
}

// HasPair reports whether the match is between a and b in either order.
func (m Match) HasPair(a, b string) bool {
	return (m.Player1 == a && m.Player2 == b) || (m.Player1 == b && m.Player2 == a)
}

// Flashcard is a question from the shared bank. Answer must match one of
// Options exactly.
type Flashcard struct {
	ID       string   `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options" yaml:"options"`
	Answer   string   `json:"answer" yaml:"answer"`
}

// PlayerAnswer is one immutable ledger row.
type PlayerAnswer struct {
	ID           string    `json:"id"`
	MatchID      string    `json:"matchId"`
	PlayerID     string    `json:"playerId"`
	FlashcardID  string    `json:"flashcardId"`
	IsCorrect    bool      `json:"isCorrect"`
	ResponseTime float64   `json:"responseTime"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AnswerRecord is a ledger row joined with its flashcard. Flashcard is nil
// when the question can no longer be resolved.
type AnswerRecord struct {
	PlayerAnswer
	Flashcard *Flashcard
}

// AnswerSubmission is a validated submit-answer request. An empty
// SelectedOption means the player ran out of time.
type AnswerSubmission struct {
	MatchID        string
	PlayerID       string
	FlashcardID    string
	SelectedOption string
	TimeTaken      float64
}

const (
	ResultCorrect = "correct"
	ResultWrong   = "wrong"
)

// ScorePair is the post-update score of both players.
type ScorePair struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// AnswerResult summarizes the outcome of one submission.
type AnswerResult struct {
	Correct        bool      `json:"correct"`
	CorrectOption  string    `json:"correctOption"`
	ResultTag      string    `json:"resultTag"`
	Scores         ScorePair `json:"scores"`
	FirstResponder bool      `json:"firstResponder"`
}

const (
	WinnerPlayer1 = "Player 1"
	WinnerPlayer2 = "Player 2"
	WinnerTie     = "Tie"
)

// HistoryEntry is a single answered question as shown on the history page.
type HistoryEntry struct {
	FlashcardID      string    `json:"flashcardId"`
	Question         string    `json:"question"`
	CorrectAnswer    string    `json:"correctAnswer"`
	WasCorrect       bool      `json:"wasCorrect"`
	ResponseTime     float64   `json:"responseTime"`
	AnsweredAt       time.Time `json:"answeredAt"`
	FlashcardMissing bool      `json:"flashcardMissing,omitempty"`
}

// History is the per-player answer sequence of a match plus the verdict.
type History struct {
	MatchID        string         `json:"matchId"`
	Player1Answers []HistoryEntry `json:"player1Answers"`
	Player2Answers []HistoryEntry `json:"player2Answers"`
	Player1Correct int            `json:"player1Correct"`
	Player2Correct int            `json:"player2Correct"`
	Player1Time    float64        `json:"player1CorrectTime"`
	Player2Time    float64        `json:"player2CorrectTime"`
	Winner         string         `json:"winner"`
}

// MatchHistorySummary is the derived end-of-match record. WinnerID is empty
// on a tie.
type MatchHistorySummary struct {
	MatchID     string    `json:"matchId"`
	Player1ID   string    `json:"player1Id"`
	Player2ID   string    `json:"player2Id"`
	Score1      int       `json:"score1"`
	Score2      int       `json:"score2"`
	WinnerID    string    `json:"winnerId"`
	Winner      string    `json:"winner"`
	TotalRounds int       `json:"totalRounds"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Event types carried by MatchEvent.
const (
	EventAnswerScored = "answer_scored"
	EventMatchCreated = "match_created"
	EventMatchStatus  = "match_status"
)

// MatchEvent is what observers receive after a match row changes.
type MatchEvent struct {
	Type   string        `json:"type"`
	Match  Match         `json:"match"`
	Answer *PlayerAnswer `json:"answer,omitempty"`
	At     time.Time     `json:"at"`
}
