// Package mqtt publishes benchmark events to an MQTT broker so dashboards
// can follow a run live.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/plannerbench/internal/events"
)

// DefaultTopic is the topic prefix used when none is configured.
const DefaultTopic = "plannerbench"

// Publisher wraps the Paho MQTT client and implements events.Sink.
type Publisher struct {
	client  paho.Client
	broker  string
	topic   string
	timeout time.Duration
	mu      sync.Mutex
}

var _ events.Sink = (*Publisher)(nil)

// BrokerURL returns the MQTT broker URL from env, the configured value or the default.
func BrokerURL(configured string) string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	if configured != "" {
		return configured
	}
	return "tcp://localhost:1883"
}

// NewPublisher creates a publisher but does not connect.
func NewPublisher(brokerURL, clientID, topic string) *Publisher {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return newPublisher(paho.NewClient(opts), brokerURL, topic)
}

func newPublisher(c paho.Client, brokerURL, topic string) *Publisher {
	topic = strings.TrimSuffix(topic, "/")
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		client:  c,
		broker:  brokerURL,
		topic:   topic,
		timeout: 10 * time.Second,
	}
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return &ConnectTimeoutError{}
	}
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

// Topic returns the topic an event is published to.
func (p *Publisher) Topic(eventName string) string {
	return p.topic + "/" + eventName
}

// Publish sends the event as JSON to <topic>/<event name>.
func (p *Publisher) Publish(e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	topic := p.Topic(e.Name)
	token := p.client.Publish(topic, 1, false, b)
	if !token.WaitTimeout(p.timeout) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (p *Publisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Start attempts to connect, logging errors but not crashing.
// Returns true if connected, false otherwise.
func (p *Publisher) Start() bool {
	if err := p.Connect(); err != nil {
		log.Printf("mqtt: failed to connect to %s: %v", p.broker, err)
		return false
	}
	log.Printf("mqtt: connected to %s, publishing to %s/#", p.broker, p.topic)
	return true
}

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt not connected")

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}
