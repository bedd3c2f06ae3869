package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestMatchSlot(t *testing.T) {
	m := Match{Player1: "u1", Player2: "u2"}
	if m.Slot("u1") != 1 || m.Slot("u2") != 2 || m.Slot("u3") != 0 {
		t.Fatalf("unexpected slots: %d %d %d", m.Slot("u1"), m.Slot("u2"), m.Slot("u3"))
	}
	if !m.HasPair("u2", "u1") || m.HasPair("u1", "u3") {
		t.Fatalf("pair matching broken")
	}
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("get: %w", MatchNotFound("m1"))
	if !IsNotFound(wrapped) {
		t.Fatalf("expected wrapped match miss to be not-found")
	}
	var nf *NotFoundError
	if !errors.As(wrapped, &nf) || nf.Entity != "match" || nf.ID != "m1" {
		t.Fatalf("expected NotFoundError for match m1, got %+v", nf)
	}
	if !IsNotFound(FlashcardNotFound("f1")) {
		t.Fatalf("expected flashcard miss to be not-found")
	}

	verr := &ValidationError{Field: "selectedOption", Reason: "required"}
	if !IsValidation(verr) || IsNotFound(verr) {
		t.Fatalf("validation classification broken")
	}

	serr := &ScoreUpdateError{MatchID: "m1", Err: errors.New("boom")}
	if !errors.Is(serr, ErrScoreUpdate) {
		t.Fatalf("expected score update sentinel")
	}
}
