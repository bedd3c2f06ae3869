package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// FirstResponderTracker records the first correct responder per
// (match, flashcard) with SETNX, so every instance agrees on the winner.
type FirstResponderTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFirstResponderTracker(client *redis.Client, ttl time.Duration) *FirstResponderTracker {
	return &FirstResponderTracker{client: client, ttl: ttl}
}

func (t *FirstResponderTracker) MarkFirst(ctx context.Context, matchID, flashcardID, playerID string) (bool, error) {
	return t.client.SetNX(ctx, t.key(matchID, flashcardID), playerID, t.ttl).Result()
}

// FirstResponder returns the recorded player for the pair, if any.
func (t *FirstResponderTracker) FirstResponder(ctx context.Context, matchID, flashcardID string) (string, bool, error) {
	player, err := t.client.Get(ctx, t.key(matchID, flashcardID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return player, true, nil
}

func (t *FirstResponderTracker) key(matchID, flashcardID string) string {
	return "match:" + matchID + ":first:" + flashcardID
}
