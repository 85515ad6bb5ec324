// Package kafka provides a franz-go producer for JSON messages.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrNoBrokers is returned when the producer has no seed brokers
var ErrNoBrokers = errors.New("kafka: at least one broker is required")

// ProducerConfig holds producer settings
type ProducerConfig struct {
	Brokers        []string
	ClientID       string
	Linger         time.Duration
	ProduceTimeout time.Duration
}

// DefaultProducerConfig returns sensible defaults
func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Brokers:        []string{"localhost:9092"},
		ClientID:       "fashionistas-ticketing",
		Linger:         5 * time.Millisecond,
		ProduceTimeout: 10 * time.Second,
	}
}

// Message is a single keyed record
type Message struct {
	Topic   string
	Key     string
	Value   any
	Headers map[string]string
}

// Producer publishes JSON-encoded records
type Producer struct {
	client  *kgo.Client
	timeout time.Duration
}

// NewProducer creates a producer and checks broker connectivity
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if cfg == nil {
		cfg = DefaultProducerConfig()
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(cfg.Linger),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka brokers: %w", err)
	}

	timeout := cfg.ProduceTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Producer{client: client, timeout: timeout}, nil
}

// BuildRecord encodes a message into a kafka record
func BuildRecord(msg Message) (*kgo.Record, error) {
	if msg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	value, err := json.Marshal(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("encode message for %s: %w", msg.Topic, err)
	}

	record := &kgo.Record{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: value,
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return record, nil
}

// Produce sends a message and waits for the broker acknowledgement
func (p *Producer) Produce(ctx context.Context, msg Message) error {
	record, err := BuildRecord(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// Ping checks broker connectivity
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client
func (p *Producer) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
