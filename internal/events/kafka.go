package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter abstracts kafka.Writer for testability.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON to a Kafka topic, keyed by event type.
type KafkaSink struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		timeout: 5 * time.Second,
	}
}

// NewKafkaSinkWith is only for tests to inject a fake writer.
func NewKafkaSinkWith(w messageWriter) *KafkaSink {
	return &KafkaSink{writer: w, timeout: time.Second}
}

// Handle is an events Handler.
func (k *KafkaSink) Handle(ctx context.Context, event Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: b,
		Time:  event.Timestamp,
	}); err != nil {
		return fmt.Errorf("kafka write %s: %w", event.Type, err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
