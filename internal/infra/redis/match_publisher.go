package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"flashcard-frenzy/internal/domain"
	"github.com/redis/go-redis/v9"
)

// MatchPublisher broadcasts match events on a per-match pub/sub channel so
// instances without the match's websocket subscribers still reach them.
type MatchPublisher struct {
	client *redis.Client
	prefix string
}

func NewMatchPublisher(client *redis.Client, prefix string) *MatchPublisher {
	return &MatchPublisher{client: client, prefix: prefix}
}

func (p *MatchPublisher) Publish(ctx context.Context, event domain.MatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode match event: %w", err)
	}
	return p.client.Publish(ctx, p.Channel(event.Match.ID), payload).Err()
}

// Channel names the pub/sub channel carrying events for matchID.
func (p *MatchPublisher) Channel(matchID string) string {
	return p.prefix + ":" + matchID
}
