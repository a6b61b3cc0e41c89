package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/welfare-savings-ledger/internal/config"
)

// RunResultMessageProducer publishes bulk operation results after a group
// run finishes, for downstream reporting. Writes are synchronous; a result
// is a one-shot summary and must not be dropped silently.
type RunResultMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// Creates a new run-result producer and ensures the result topic exists
func NewRunResultMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*RunResultMessageProducer, error) {
	if cfg.ResultTopic == "" {
		return nil, fmt.Errorf("kafka result topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for run result producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.ResultTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure result topic %s exists for run result producer: %w", cfg.ResultTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.ResultTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &RunResultMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.ResultTopic,
	}, nil
}

func (p *RunResultMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for run result producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish run result",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish run result to %s: %w", p.topic, err)
	}

	p.logger.Info("Published run result",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *RunResultMessageProducer) Close() error {
	p.logger.Info("Closing run result Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close run result kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
