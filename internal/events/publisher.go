package events

import (
	"context"
	"fmt"

	"github.com/fashionistas/ticketing/pkg/kafka"
	"github.com/fashionistas/ticketing/pkg/logger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Producer is the subset of kafka.Producer used for publishing
type Producer interface {
	Produce(ctx context.Context, msg kafka.Message) error
	Close(ctx context.Context) error
}

// KafkaPublisher writes events to Kafka keyed by registration id
type KafkaPublisher struct {
	producer Producer
	source   string
}

// NewKafkaPublisher creates a publisher; source is stamped into the headers
func NewKafkaPublisher(producer Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

// Publish sends one event and waits for the acknowledgement
func (p *KafkaPublisher) Publish(ctx context.Context, event *RegistrationEvent) error {
	headers := map[string]string{
		"event_type": event.EventType,
		"source":     p.source,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		headers["trace_id"] = sc.TraceID().String()
	}

	err := p.producer.Produce(ctx, kafka.Message{
		Topic:   event.EventType,
		Key:     event.Key(),
		Value:   event,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("publish %s for registration %s: %w", event.EventType, event.RegistrationID, err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *KafkaPublisher) Close(ctx context.Context) error {
	return p.producer.Close(ctx)
}

// LogPublisher writes events to the log. Used when Kafka is disabled.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher creates a publisher that only logs
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event *RegistrationEvent) error {
	p.log.InfoContext(ctx, "registration event",
		zap.String("event_type", event.EventType),
		zap.String("registration_id", event.RegistrationID),
		zap.String("payment_status", string(event.PaymentStatus)),
	)
	return nil
}

func (p *LogPublisher) Close(context.Context) error { return nil }
