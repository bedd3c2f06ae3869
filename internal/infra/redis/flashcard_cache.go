package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"flashcard-frenzy/internal/app"
	"flashcard-frenzy/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// FlashcardCache caches flashcards in Redis and falls back to source on a
// miss. Each card is one hash:
//
//	HSET flashcard:{id} question {text} options {json array} answer {text}
type FlashcardCache struct {
	client *redis.Client
	source app.FlashcardReader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewFlashcardCache(client *redis.Client, source app.FlashcardReader, ttl time.Duration) *FlashcardCache {
	return &FlashcardCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *FlashcardCache) GetFlashcard(ctx context.Context, flashcardID string) (domain.Flashcard, error) {
	if card, ok := c.cached(ctx, flashcardID); ok {
		return card, nil
	}

	result, err, _ := c.sf.Do(flashcardID, func() (interface{}, error) {
		if card, ok := c.cached(ctx, flashcardID); ok {
			return card, nil
		}

		card, err := c.source.GetFlashcard(ctx, flashcardID)
		if err != nil {
			return domain.Flashcard{}, err
		}

		options, err := json.Marshal(card.Options)
		if err != nil {
			return card, nil
		}
		key := flashcardKey(flashcardID)
		pipe := c.client.TxPipeline()
		pipe.HSet(ctx, key, "question", card.Question, "options", string(options), "answer", card.Answer)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// The source already answered; a failed cache fill only costs a reload.
		_, _ = pipe.Exec(ctx)
		return card, nil
	})
	if err != nil {
		return domain.Flashcard{}, err
	}
	return result.(domain.Flashcard), nil
}

// Invalidate drops the cached copy of flashcardID.
func (c *FlashcardCache) Invalidate(ctx context.Context, flashcardID string) error {
	return c.client.Del(ctx, flashcardKey(flashcardID)).Err()
}

func (c *FlashcardCache) cached(ctx context.Context, flashcardID string) (domain.Flashcard, bool) {
	fields, err := c.client.HGetAll(ctx, flashcardKey(flashcardID)).Result()
	if err != nil || len(fields) == 0 {
		return domain.Flashcard{}, false
	}
	answer, ok := fields["answer"]
	if !ok {
		return domain.Flashcard{}, false
	}
	card := domain.Flashcard{ID: flashcardID, Question: fields["question"], Answer: answer}
	if raw := fields["options"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &card.Options); err != nil {
			return domain.Flashcard{}, false
		}
	}
	return card, true
}

func (c *FlashcardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func flashcardKey(flashcardID string) string {
	return "flashcard:" + flashcardID
}
