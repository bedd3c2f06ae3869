package cli

import (
	"fmt"

	"flashcard-frenzy/internal/config"
	"flashcard-frenzy/internal/infra/postgres"
	infraredis "flashcard-frenzy/internal/infra/redis"
	"flashcard-frenzy/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd upserts a YAML flashcard bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var bankPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a flashcard bank into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			cards, err := config.LoadFlashcardBank(bankPath)
			if err != nil {
				return err
			}
			if err := runMigrations(ctx, cfg, logger); err != nil {
				return err
			}
			pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			store := postgres.NewStore(pool)

			// Cached copies would keep serving the old answers until expiry.
			var cache *infraredis.FlashcardCache
			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer client.Close()
				cache = infraredis.NewFlashcardCache(client, store, cfg.Redis.FlashcardTTL)
			}

			for _, card := range cards {
				if _, err := store.CreateFlashcard(ctx, card); err != nil {
					return fmt.Errorf("seed flashcard %s: %w", card.ID, err)
				}
				if cache != nil {
					if err := cache.Invalidate(ctx, card.ID); err != nil {
						logger.Warn("flashcard cache invalidation failed", zap.String("flashcard_id", card.ID), zap.Error(err))
					}
				}
			}
			logger.Info("flashcards seeded", zap.Int("count", len(cards)), zap.String("bank", bankPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&bankPath, "bank", "config/flashcards.yaml", "path to YAML flashcard bank")
	return cmd
}
