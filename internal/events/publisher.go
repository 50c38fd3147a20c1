// Package events publishes stream lifecycle events to Kafka for downstream
// consumers (billing, notifications, analytics).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/truongvando/ezstream-sub000/internal/models"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	EventStreamStarting  EventType = "stream.starting"
	EventStreamStreaming EventType = "stream.streaming"
	EventStreamStopping  EventType = "stream.stopping"
	EventStreamStopped   EventType = "stream.stopped"
	EventStreamCompleted EventType = "stream.completed"
	EventStreamFailed    EventType = "stream.failed"
	EventWorkerLost      EventType = "worker.lost"
)

// LifecycleEvent is the payload published for each transition.
type LifecycleEvent struct {
	Type     EventType           `json:"type"`
	StreamID models.ULID         `json:"stream_id,omitempty"`
	OwnerID  models.ULID         `json:"owner_id,omitempty"`
	WorkerID *models.ULID        `json:"worker_id,omitempty"`
	Status   models.StreamStatus `json:"status,omitempty"`
	Reason   string              `json:"reason,omitempty"`
	At       time.Time           `json:"at"`
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *LifecycleEvent) error
	Close() error
}

// KafkaPublisher publishes events to a Kafka topic, keyed by stream ID so
// each stream's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(brokers []string, topic string, writeTimeout, batchTimeout time.Duration, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			WriteTimeout: writeTimeout,
			BatchTimeout: batchTimeout,
		},
		logger: logger.With("component", "event_publisher"),
	}
}

// Publish sends one lifecycle event.
func (p *KafkaPublisher) Publish(ctx context.Context, event *LifecycleEvent) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding lifecycle event: %w", err)
	}

	key := event.StreamID.String()
	if event.StreamID.IsZero() && event.WorkerID != nil {
		key = event.WorkerID.String()
	}

	if err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}

	p.logger.Debug("lifecycle event published",
		slog.String("type", string(event.Type)),
		slog.String("key", key),
	)
	return nil
}

// Close flushes and closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards events, used when event publishing is disabled.
type NoopPublisher struct{}

// Publish discards the event.
func (NoopPublisher) Publish(ctx context.Context, event *LifecycleEvent) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }
