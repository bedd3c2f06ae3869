package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"flashcard-frenzy/internal/app"
	"flashcard-frenzy/internal/domain"
	"golang.org/x/sync/singleflight"
)

// FlashcardCache caches flashcards with TTL to avoid repeated DB hits.
// Flashcards are immutable, so a stale entry is never wrong, only late to
// notice a deletion.
type FlashcardCache struct {
	source app.FlashcardReader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedFlashcard
}

type cachedFlashcard struct {
	card      domain.Flashcard
	expiresAt time.Time
}

func NewFlashcardCache(source app.FlashcardReader, ttl time.Duration) *FlashcardCache {
	return &FlashcardCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedFlashcard),
	}
}

func (c *FlashcardCache) GetFlashcard(ctx context.Context, flashcardID string) (domain.Flashcard, error) {
	if card, ok := c.lookup(flashcardID); ok {
		return card, nil
	}

	result, err, _ := c.sf.Do(flashcardID, func() (interface{}, error) {
		if card, ok := c.lookup(flashcardID); ok {
			return card, nil
		}

		card, err := c.source.GetFlashcard(ctx, flashcardID)
		if err != nil {
			return domain.Flashcard{}, err
		}

		c.mu.Lock()
		c.cache[flashcardID] = cachedFlashcard{
			card:      card,
			expiresAt: c.clock().Add(c.ttlWithJitterLocked()),
		}
		c.mu.Unlock()
		return card, nil
	})
	if err != nil {
		return domain.Flashcard{}, err
	}
	return result.(domain.Flashcard), nil
}

func (c *FlashcardCache) lookup(flashcardID string) (domain.Flashcard, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[flashcardID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Flashcard{}, false
	}
	return entry.card, true
}

// ttlWithJitterLocked adds up to 10% jitter to spread expirations. rand.Rand
// is not safe for concurrent use, so callers hold mu.
func (c *FlashcardCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
