package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/welfare-savings-ledger/internal/config"
)

type GroupRunMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates a new group-run producer and ensures the run topic exists
func NewGroupRunMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*GroupRunMessageProducer, error) {
	if cfg.RunTopic == "" {
		return nil, fmt.Errorf("kafka run topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for group run producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.RunTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure run topic %s exists for group run producer: %w", cfg.RunTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.RunTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Using async for high throughput
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.RunTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.RunTopic, "count", len(messages))
			}
		},
	}

	return &GroupRunMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.RunTopic,
	}, nil
}

func (p *GroupRunMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for group run producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via group run producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via group run producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via group run producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *GroupRunMessageProducer) Close() error {
	p.logger.Info("Closing group run Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close group run kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
