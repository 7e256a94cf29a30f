package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// Message is one consumed job. raw carries the broker handle needed to commit it.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
	raw     kafka.Message
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
	Commit(ctx context.Context, msgs ...Message) error
}

// LoggingPublisher only logs; used when no broker is configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.InfoContext(ctx, "event published",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload_bytes", len(payload),
	)
	return nil
}

// LocalBus is an in-process broker: what is published can be polled back.
// It lets a single binary run the whole pipeline without Kafka.
type LocalBus struct {
	mu      sync.Mutex
	pending []Message
	topics  map[string]bool
	next    ports.EventPublisher
}

// NewLocalBus queues the given event types for its consumer and hands every
// other event to next, which may be nil.
func NewLocalBus(eventTypes []string, next ports.EventPublisher) *LocalBus {
	topics := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		topics[t] = true
	}
	return &LocalBus{topics: topics, next: next}
}

func (b *LocalBus) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	if !b.topics[eventType] {
		if b.next == nil {
			return nil
		}
		return b.next.Publish(ctx, eventType, payload, partitionKey)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, Message{Topic: eventType, Key: partitionKey, Payload: append([]byte(nil), payload...)})
	return nil
}

func (b *LocalBus) Poll(_ context.Context, max int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if max <= 0 || max > len(b.pending) {
		max = len(b.pending)
	}
	out := append([]Message(nil), b.pending[:max]...)
	b.pending = b.pending[max:]
	return out, nil
}

func (b *LocalBus) Commit(context.Context, ...Message) error { return nil }

// Pending reports how many messages wait to be polled.
func (b *LocalBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
