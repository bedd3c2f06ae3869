package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"flashcard-frenzy/internal/app"
	"flashcard-frenzy/internal/domain"
)

func TestFlashcardCacheCaches(t *testing.T) {
	store := NewStore()
	_, _ = store.CreateFlashcard(context.Background(), sampleFlashcard())
	source := &countingReader{FlashcardReader: store}
	cache := NewFlashcardCache(source, time.Minute)

	if _, err := cache.GetFlashcard(context.Background(), "f1"); err != nil {
		t.Fatalf("get flashcard: %v", err)
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected source once, got %d", source.calls.Load())
	}

	card, err := cache.GetFlashcard(context.Background(), "f1")
	if err != nil {
		t.Fatalf("get flashcard 2: %v", err)
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.calls.Load())
	}
	if card.Answer != "Paris" {
		t.Fatalf("expected cached answer Paris, got %q", card.Answer)
	}
}

func TestFlashcardCacheExpires(t *testing.T) {
	store := NewStore()
	_, _ = store.CreateFlashcard(context.Background(), sampleFlashcard())
	source := &countingReader{FlashcardReader: store}
	cache := NewFlashcardCache(source, time.Minute)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetFlashcard(context.Background(), "f1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetFlashcard(context.Background(), "f1")
	if source.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, source calls %d", source.calls.Load())
	}
}

func TestFlashcardCacheDoesNotCacheMisses(t *testing.T) {
	store := NewStore()
	cache := NewFlashcardCache(store, time.Minute)

	_, err := cache.GetFlashcard(context.Background(), "f1")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, _ = store.CreateFlashcard(context.Background(), sampleFlashcard())
	if _, err := cache.GetFlashcard(context.Background(), "f1"); err != nil {
		t.Fatalf("expected flashcard after creation, got %v", err)
	}
}

type countingReader struct {
	app.FlashcardReader
	calls atomic.Int32
}

func (r *countingReader) GetFlashcard(ctx context.Context, id string) (domain.Flashcard, error) {
	r.calls.Add(1)
	return r.FlashcardReader.GetFlashcard(ctx, id)
}

func sampleFlashcard() domain.Flashcard {
	return domain.Flashcard{
		ID:       "f1",
		Question: "Capital of France?",
		Options:  []string{"Paris", "Lyon", "Nice"},
		Answer:   "Paris",
	}
}
