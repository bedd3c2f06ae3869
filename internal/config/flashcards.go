package config

import (
	"fmt"
	"os"

	"flashcard-frenzy/internal/domain"
	"gopkg.in/yaml.v3"
)

type flashcardBank struct {
	Flashcards []domain.Flashcard `yaml:"flashcards"`
}

// LoadFlashcardBank reads a YAML question bank:
//
//	flashcards:
//	  - id: f1
//	    question: Capital of France?
//	    options: [Paris, Lyon, Nice]
//	    answer: Paris
func LoadFlashcardBank(path string) ([]domain.Flashcard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flashcard bank: %w", err)
	}
	var bank flashcardBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parsing flashcard bank: %w", err)
	}
	seen := make(map[string]struct{}, len(bank.Flashcards))
	for i, card := range bank.Flashcards {
		if card.ID == "" || card.Question == "" {
			return nil, fmt.Errorf("flashcard %d: id and question are required", i)
		}
		if _, dup := seen[card.ID]; dup {
			return nil, fmt.Errorf("flashcard %d: duplicate id %q", i, card.ID)
		}
		seen[card.ID] = struct{}{}
	}
	return bank.Flashcards, nil
}
