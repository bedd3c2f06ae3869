package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Scoring  ScoringConfig  `yaml:"scoring"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Encoding string `yaml:"encoding" validate:"omitempty,oneof=json console"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr              string        `yaml:"addr"`
	Password          string        `yaml:"password"`
	DB                int           `yaml:"db" validate:"gte=0"`
	FlashcardTTL      time.Duration `yaml:"flashcard_ttl" validate:"gte=0"`
	FirstResponderTTL time.Duration `yaml:"first_responder_ttl" validate:"gte=0"`
	ChannelPrefix     string        `yaml:"channel_prefix"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `yaml:"topic"`
}

type ScoringConfig struct {
	// ForeignPlayers is "record" (keep the ledger row, no score change) or
	// "reject" (fail the submission).
	ForeignPlayers string        `yaml:"foreign_players" validate:"oneof=record reject"`
	StorageTimeout time.Duration `yaml:"storage_timeout" validate:"gt=0"`
	CacheTTL       time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// Load reads YAML config from path, expanding ${ENV} references, applying
// defaults and validating the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied and no
// external backends configured.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if c.Redis.FlashcardTTL == 0 {
		c.Redis.FlashcardTTL = 10 * time.Minute
	}
	if c.Redis.FirstResponderTTL == 0 {
		c.Redis.FirstResponderTTL = time.Hour
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = "match"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "match-events"
	}
	if c.Scoring.ForeignPlayers == "" {
		c.Scoring.ForeignPlayers = "record"
	}
	if c.Scoring.StorageTimeout == 0 {
		c.Scoring.StorageTimeout = 3 * time.Second
	}
	if c.Scoring.CacheTTL == 0 {
		c.Scoring.CacheTTL = time.Minute
	}
}

// Validate checks struct tags and reports every failing field.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("config validator: %w", err)
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}
