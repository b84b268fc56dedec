package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Options configures the Kafka producer
type Options struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher implements EventPublisher on top of a single Kafka topic.
// The subject goes into the message key and the "subject" header.
type KafkaPublisher struct {
	writer messageWriter
	logger *logger.Logger
}

// NewKafkaPublisher creates a Kafka producer for the configured topic
func NewKafkaPublisher(opts Options, log *logger.Logger) (*KafkaPublisher, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(opts.Brokers...),
		Topic:                  opts.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}

	log.Info("Kafka publisher configured", "brokers", opts.Brokers, "topic", opts.Topic)

	return newKafkaPublisher(w, log), nil
}

func newKafkaPublisher(w messageWriter, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: log}
}

// PublishEvent serialises the event and writes it synchronously
func (p *KafkaPublisher) PublishEvent(ctx context.Context, subject string, event interface{}) error {
	msg, err := serializeToMessage(subject, event, valueobject.Now())
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", err, "subject", subject)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published", "subject", subject, "size", len(msg.Value))
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(subject string, event interface{}, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(subject),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "subject", Value: []byte(subject)},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
