// Package events publishes domain events to Kafka so other services (notifications,
// analytics) can react to club, equipment and trail activity without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types.
const (
	TypeClubMemberJoined      = "club.member_joined"
	TypeEquipmentSynced       = "equipment.synced"
	TypeTrailSessionCompleted = "trail_session.completed"
)

// Event is the envelope written to the topic. Payload is event-specific.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// New returns an Event with a fresh id.
func New(eventType string, at time.Time, payload interface{}) Event {
	return Event{ID: uuid.NewString(), Type: eventType, OccurredAt: at.UTC(), Payload: payload}
}

// Publisher delivers events. Publish must not block the request on broker latency.
type Publisher interface {
	Publish(ctx context.Context, key string, e Event) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
func (Nop) Close() error                                 { return nil }

// KafkaPublisher writes events asynchronously to a single topic. Delivery failures
// are reported through the logger, not to the caller.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher builds an async writer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{log: log}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   p.completion,
	}
	return p
}

// Publish encodes e and hands it to the writer. key selects the partition, so events
// for the same club or user stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
		Time: e.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes buffered messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		p.log.Warn("event delivery failed",
			zap.String("topic", p.writer.Topic),
			zap.ByteString("key", m.Key),
			zap.Error(err))
	}
}
