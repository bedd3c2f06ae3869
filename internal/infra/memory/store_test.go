package memory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"flashcard-frenzy/internal/domain"
)

func TestStoreMatchLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	m, err := store.CreateMatch(ctx, domain.Match{Player1: "u1", Player2: "u2", Status: domain.MatchPending, Round: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected generated id")
	}

	if _, err := store.CreateMatch(ctx, domain.Match{Player1: "u2", Player2: "u1", Status: domain.MatchPending}); !errors.Is(err, domain.ErrPendingMatchExists) {
		t.Fatalf("expected pending conflict for reversed pair, got %v", err)
	}

	active, ok, err := store.ActivatePending(ctx, "u2", "u1")
	if err != nil || !ok {
		t.Fatalf("activate: ok=%v err=%v", ok, err)
	}
	if active.ID != m.ID || active.Status != domain.MatchActive {
		t.Fatalf("expected %s active, got %+v", m.ID, active)
	}

	if _, ok, _ := store.ActivatePending(ctx, "u1", "u2"); ok {
		t.Fatalf("expected no pending match left")
	}

	if _, err := store.SetStatus(ctx, "missing", domain.MatchFinished); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreListMatchesOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		if _, err := store.CreateMatch(ctx, domain.Match{ID: id, Player1: "u" + id, Player2: "v" + id, Status: domain.MatchActive, CreatedAt: base.Add(time.Duration(2-i) * time.Minute)}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, err := store.CreateMatch(ctx, domain.Match{ID: "d", Player1: "ud", Player2: "vd", Status: domain.MatchActive, CreatedAt: base}); err != nil {
		t.Fatalf("create d: %v", err)
	}

	matches, err := store.ListMatches(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, m := range matches {
		got = append(got, m.ID)
	}
	if want := []string{"b", "d", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestStoreIncrementScoresConcurrently(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	m, _ := store.CreateMatch(ctx, domain.Match{Player1: "u1", Player2: "u2", Status: domain.MatchActive})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.IncrementScores(ctx, m.ID, 1, 0)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.IncrementScores(ctx, m.ID, 0, 1)
		}()
	}
	wg.Wait()

	got, _ := store.GetMatch(ctx, m.ID)
	if got.Score1 != 50 || got.Score2 != 50 {
		t.Fatalf("expected 50/50, got %d/%d", got.Score1, got.Score2)
	}
}

func TestStoreListAnswersOrderedAndJoined(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore()
	_, _ = store.CreateFlashcard(ctx, sampleFlashcard())

	_, _ = store.AppendAnswer(ctx, domain.PlayerAnswer{MatchID: "m1", PlayerID: "u2", FlashcardID: "f1", CreatedAt: base.Add(2 * time.Second)})
	_, _ = store.AppendAnswer(ctx, domain.PlayerAnswer{MatchID: "m1", PlayerID: "u1", FlashcardID: "gone", CreatedAt: base.Add(time.Second)})
	_, _ = store.AppendAnswer(ctx, domain.PlayerAnswer{MatchID: "m1", PlayerID: "u1", FlashcardID: "f1", CreatedAt: base.Add(time.Second)})
	_, _ = store.AppendAnswer(ctx, domain.PlayerAnswer{MatchID: "m2", PlayerID: "u1", FlashcardID: "f1", CreatedAt: base})

	rows, err := store.ListAnswers(ctx, "m1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].FlashcardID != "gone" || rows[1].FlashcardID != "f1" || rows[2].PlayerID != "u2" {
		t.Fatalf("unexpected order: %+v", rows)
	}
	if rows[0].Flashcard != nil {
		t.Fatalf("expected missing join for deleted flashcard")
	}
	if rows[1].Flashcard == nil || rows[1].Flashcard.Question != "Capital of France?" {
		t.Fatalf("expected joined flashcard, got %+v", rows[1].Flashcard)
	}
}
