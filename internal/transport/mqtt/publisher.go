// Package mqtt publishes actuation commands to an MQTT broker (e.g. a
// HiveMQ Cloud instance) at QoS 1.
package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// QoS 1 publish within the configured timeout.
var ErrPublishTimeout = errors.New("mqtt: publish timed out")

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// Config holds broker connection parameters.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// UseTLS selects mqtts. InsecureSkipVerify additionally disables
	// certificate verification for brokers with self-signed certs.
	UseTLS             bool
	InsecureSkipVerify bool
	// PublishTimeout bounds the wait for the broker ack; <= 0 selects the
	// 5s default.
	PublishTimeout time.Duration
}

// Publisher is a transport.Publisher backed by a single MQTT client
// connection with automatic reconnect.
type Publisher struct {
	client  paho.Client
	timeout time.Duration
}

// Connect dials the broker and waits for the connection to come up.
func Connect(cfg Config) (*Publisher, error) {
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(defaultConnectTimeout).
		SetAutoReconnect(true)
	if cfg.UseTLS && cfg.InsecureSkipVerify {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	client := paho.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(defaultConnectTimeout) {
		return nil, errors.New("mqtt: connect timed out")
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{client: client, timeout: timeout}, nil
}

// Publish sends payload to topic at QoS 1 and waits for the broker ack,
// bounded by the publish timeout and ctx.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	tok := p.client.Publish(topic, 1, false, payload)

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt: publish %s: %w", topic, err)
		}
		return nil
	case <-deadline.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker, allowing in-flight messages a short
// grace period.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
