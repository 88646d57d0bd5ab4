// Package kafka publishes actuation commands through a Kafka cluster, for
// installations that already run one instead of an MQTT broker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

// Publisher is a transport.Publisher using segmentio/kafka-go. The writer
// carries no fixed topic; each message is routed by the dispatch target.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher writing to the given brokers. Call
// Close when shutting down.
func NewPublisher(brokers []string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{writer: writer}, nil
}

// Publish writes payload to topic. Uses a short timeout so a slow cluster
// fails the dispatch attempt instead of blocking the caller.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Topic: topic,
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("kafka: publish %s: %w", topic, err)
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
