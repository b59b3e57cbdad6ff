// Package kafka publishes trigger events to Kafka for the external webhook
// and pixel delivery service.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
)

var _ port.Notifier = (*Publisher)(nil)

// Publisher writes each trigger event to <prefix><type>, keyed by store id
// so a store's events stay ordered within a partition.
type Publisher struct {
	writer      *kafka.Writer
	topicPrefix string
}

// NewPublisher returns a publisher for brokers.
func NewPublisher(brokers []string, topicPrefix string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicPrefix: topicPrefix,
	}, nil
}

// Topic returns the topic of a trigger type.
func (p *Publisher) Topic(t domain.TriggerType) string {
	return p.topicPrefix + strings.ReplaceAll(string(t), "_", ".")
}

// Notify publishes event.
func (p *Publisher) Notify(ctx context.Context, event domain.TriggerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode trigger %s: %w", event.EventID, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.Topic(event.Type),
		Key:   []byte(event.StoreID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish trigger %s: %w", event.EventID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
