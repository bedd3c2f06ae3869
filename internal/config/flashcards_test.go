package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBank(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flashcards.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	return path
}

func TestLoadFlashcardBank(t *testing.T) {
	path := writeBank(t, `
flashcards:
  - id: f1
    question: Capital of France?
    options: [Paris, Lyon, Nice]
    answer: Paris
  - id: f2
    question: 2 + 2?
    options: ["3", "4"]
    answer: "4"
`)
	cards, err := LoadFlashcardBank(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cards) != 2 || cards[0].Answer != "Paris" || cards[1].Answer != "4" || len(cards[0].Options) != 3 {
		t.Fatalf("unexpected cards %+v", cards)
	}
}

func TestLoadFlashcardBankRejectsDuplicates(t *testing.T) {
	path := writeBank(t, "flashcards:\n  - {id: f1, question: a, answer: x}\n  - {id: f1, question: b, answer: y}\n")
	if _, err := LoadFlashcardBank(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestLoadFlashcardBankRequiresQuestion(t *testing.T) {
	path := writeBank(t, "flashcards:\n  - {id: f1, answer: x}\n")
	if _, err := LoadFlashcardBank(path); err == nil {
		t.Fatalf("expected missing question error")
	}
}
