// Package bus holds the Kafka plumbing shared by producers and consumers.
package bus

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Publisher is the narrow producer surface the ingest path depends on.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Writer publishes keyed messages to one topic. The hash balancer keeps all
// messages with the same key (same content URL) on the same partition.
type Writer struct {
	w *kafka.Writer
}

// NewWriter builds a producer for the topic.
func NewWriter(brokers []string, topic string) *Writer {
	return &Writer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
		},
	}
}

func (p *Writer) Publish(ctx context.Context, key string, value []byte) error {
	err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.w.Topic, err)
	}
	return nil
}

func (p *Writer) Close() error {
	return p.w.Close()
}

// NewReader builds a consumer group reader with manual commits. Each group id
// gets its own offset track, so independent groups all see every message.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
}
