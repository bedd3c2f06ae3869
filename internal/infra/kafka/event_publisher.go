package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flashcard-frenzy/internal/domain"
	"github.com/IBM/sarama"
)

// EventPublisher writes match events to a Kafka topic, keyed by match id so
// a match's events stay ordered within one partition.
type EventPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducerConfig is the producer configuration EventPublisher expects.
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Timeout = 5 * time.Second
	return config
}

// Dial connects a sync producer to brokers.
func Dial(brokers []string, topic string) (*EventPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewEventPublisher(producer, topic), nil
}

func NewEventPublisher(producer sarama.SyncProducer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

func (p *EventPublisher) Publish(_ context.Context, event domain.MatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode match event: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Match.ID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("send match event: %w", err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
