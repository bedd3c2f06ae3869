package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"flashcard-frenzy/internal/app"
	"flashcard-frenzy/internal/config"
	"flashcard-frenzy/internal/domain"
	"flashcard-frenzy/internal/infra/kafka"
	"flashcard-frenzy/internal/infra/memory"
	"flashcard-frenzy/internal/infra/postgres"
	infraredis "flashcard-frenzy/internal/infra/redis"
	"flashcard-frenzy/internal/logging"
	"flashcard-frenzy/internal/metrics"
	transport "flashcard-frenzy/internal/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var bankPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the match server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, bankPath)
		},
	}
	cmd.Flags().StringVar(&bankPath, "bank", "", "YAML flashcard bank for the in-memory store")
	return cmd
}

// backends groups the storage and delivery adapters chosen by config.
type backends struct {
	scores     app.ScoreStore
	matches    app.MatchRepository
	flashcards app.FlashcardRepository
	reader     app.FlashcardReader
	first      app.FirstResponderTracker
	feed       *memory.MatchFeed
	publishers app.Publishers
	closers    []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag, bankPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := buildBackends(ctx, cfg, bankPath, logger)
	if err != nil {
		return err
	}
	defer b.close()

	reg := metrics.New()
	answers := app.NewAnswerProcessor(b.scores, b.reader, logger, app.ProcessorOptions{
		StorageTimeout: cfg.Scoring.StorageTimeout,
		ForeignPlayers: app.ForeignPlayerPolicy(cfg.Scoring.ForeignPlayers),
		FirstResponder: b.first,
		Publisher:      b.publishers,
		Observer:       reg,
	})
	matches := app.NewMatchService(b.matches, b.publishers, logger)
	history := app.NewHistoryService(b.scores, logger, cfg.Scoring.StorageTimeout)
	ws := transport.NewWSHandler(matches, answers, b.feed, logger)
	handler := transport.NewHandler(matches, answers, history, b.flashcards, ws, reg.Handler(), logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting flashcard-frenzy", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-serveErr:
		logger.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildBackends(ctx context.Context, cfg config.Config, bankPath string, logger *zap.Logger) (*backends, error) {
	b := &backends{feed: memory.NewMatchFeed()}
	b.publishers = append(b.publishers, b.feed)

	var source app.FlashcardReader
	if cfg.Postgres.URL != "" {
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		store := postgres.NewStore(pool)
		b.scores, b.matches, b.flashcards, source = store, store, store, store
		logger.Info("using postgres store")
	} else {
		store := memory.NewStore()
		cards := sampleFlashcards()
		if bankPath != "" {
			loaded, err := config.LoadFlashcardBank(bankPath)
			if err != nil {
				return nil, err
			}
			cards = loaded
		}
		for _, card := range cards {
			if _, err := store.CreateFlashcard(ctx, card); err != nil {
				return nil, err
			}
		}
		b.scores, b.matches, b.flashcards, source = store, store, store, store
		logger.Info("using in-memory store", zap.Int("flashcards", len(cards)))
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		source = infraredis.NewFlashcardCache(client, source, cfg.Redis.FlashcardTTL)
		b.first = infraredis.NewFirstResponderTracker(client, cfg.Redis.FirstResponderTTL)
		b.publishers = append(b.publishers, infraredis.NewMatchPublisher(client, cfg.Redis.ChannelPrefix))
	} else {
		b.first = memory.NewFirstResponderTracker()
	}
	b.reader = memory.NewFlashcardCache(source, cfg.Scoring.CacheTTL)

	if cfg.Kafka.Enabled {
		publisher, err := kafka.Dial(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close kafka producer", zap.Error(err))
			}
		})
		b.publishers = append(b.publishers, publisher)
	}
	return b, nil
}

// sampleFlashcards seeds the in-memory store when no bank file is given.
func sampleFlashcards() []domain.Flashcard {
	return []domain.Flashcard{
		{ID: "f1", Question: "What is the capital of France?", Options: []string{"Paris", "Lyon", "Marseille", "Nice"}, Answer: "Paris"},
		{ID: "f2", Question: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, Answer: "4"},
		{ID: "f3", Question: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Saturn"}, Answer: "Mars"},
	}
}
