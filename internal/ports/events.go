package ports

import "context"

// JobQueue accepts jobs for durable, at-least-once delivery.
type JobQueue interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
}

// EventPublisher is the outbound broker port used by the outbox loop.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
