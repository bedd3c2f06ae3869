package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMatchNotFound is returned when a match id does not resolve.
	ErrMatchNotFound = errors.New("match not found")
	// ErrFlashcardNotFound is returned when a flashcard id does not resolve.
	ErrFlashcardNotFound = errors.New("flashcard not found")
	// ErrPlayerNotInMatch is returned under the reject policy when the
	// submitting player is neither player1 nor player2.
	ErrPlayerNotInMatch = errors.New("player is not registered in match")
	// ErrValidation marks malformed input rejected before any read or write.
	ErrValidation = errors.New("validation failed")
	// ErrScoreUpdate marks a failed score mutation.
	ErrScoreUpdate = errors.New("score update failed")
	// ErrPendingMatchExists is returned by stores when a second pending match
	// would be created for the same pair of players.
	ErrPendingMatchExists = errors.New("pending match already exists for players")
)

// NotFoundError names the entity type and id that could not be resolved.
type NotFoundError struct {
	Entity string
	ID     string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// MatchNotFound builds the not-found error for a match id.
func MatchNotFound(id string) error {
	return &NotFoundError{Entity: "match", ID: id, Err: ErrMatchNotFound}
}

// FlashcardNotFound builds the not-found error for a flashcard id.
func FlashcardNotFound(id string) error {
	return &NotFoundError{Entity: "flashcard", ID: id, Err: ErrFlashcardNotFound}
}

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ScoreUpdateError wraps the storage failure behind a score mutation.
type ScoreUpdateError struct {
	MatchID string
	Err     error
}

func (e *ScoreUpdateError) Error() string {
	return fmt.Sprintf("update scores for match %s: %v", e.MatchID, e.Err)
}

func (e *ScoreUpdateError) Unwrap() error { return e.Err }

func (e *ScoreUpdateError) Is(target error) bool { return target == ErrScoreUpdate }

// IsNotFound reports whether err is a match or flashcard lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMatchNotFound) || errors.Is(err, ErrFlashcardNotFound)
}

// IsValidation reports whether err came from input validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
