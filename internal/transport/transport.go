// Package transport abstracts the message broker carrying actuation
// commands to physical devices. Delivery is at-least-once; a failed
// publish is a terminal result for that dispatch attempt, never retried
// here.
package transport

import (
	"context"
	"log"
)

// Publisher delivers one payload to one broker topic. Implementations must
// bound how long Publish blocks: a slow broker fails the attempt rather
// than stalling the caller.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// LogPublisher writes commands to the process log instead of a broker.
// Used in development and as the fallback when no broker is configured.
type LogPublisher struct {
	logger *log.Logger
}

// NewLogPublisher returns a Publisher that records publishes on logger.
func NewLogPublisher(logger *log.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the topic and payload and always succeeds.
func (p *LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.logger.Printf("transport: publish topic=%s payload=%s", topic, payload)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
