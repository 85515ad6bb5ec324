package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/pkg/kafka"
	"github.com/fashionistas/ticketing/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Produce(ctx context.Context, msg kafka.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockProducer) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func sampleRegistration() *domain.Registration {
	return &domain.Registration{
		ID:            "reg-1",
		EventID:       "evt-1",
		TicketTypeID:  "tt-1",
		BuyerID:       "buyer-1",
		Quantity:      2,
		TotalAmount:   decimal.RequireFromString("300.00"),
		Currency:      "usd",
		PaymentStatus: domain.PaymentStatusPending,
	}
}

func TestTopicForStatus(t *testing.T) {
	assert.Equal(t, TopicRegistrationCreated, TopicForStatus(domain.PaymentStatusPending))
	assert.Equal(t, TopicRegistrationCompleted, TopicForStatus(domain.PaymentStatusCompleted))
	assert.Equal(t, TopicRegistrationFailed, TopicForStatus(domain.PaymentStatusFailed))
	assert.Equal(t, TopicRegistrationCancelled, TopicForStatus(domain.PaymentStatusCancelled))
}

func TestNewRegistrationEvent(t *testing.T) {
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	evt := NewRegistrationEvent(TopicRegistrationCreated, sampleRegistration(), "", at)

	assert.Equal(t, "reg-1", evt.Key())
	assert.Equal(t, time.UTC, evt.Timestamp.Location())

	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total_amount":"300"`)
	assert.Contains(t, string(raw), `"event_type":"registration.created"`)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := new(MockProducer)
	pub := NewKafkaPublisher(producer, "fashionistas-ticketing")
	evt := NewRegistrationEvent(TopicRegistrationCompleted, sampleRegistration(), "payment succeeded", time.Now())

	producer.On("Produce", mock.Anything, mock.MatchedBy(func(msg kafka.Message) bool {
		return msg.Topic == TopicRegistrationCompleted &&
			msg.Key == "reg-1" &&
			msg.Headers["source"] == "fashionistas-ticketing" &&
			msg.Value == evt
	})).Return(nil).Once()

	require.NoError(t, pub.Publish(context.Background(), evt))
	producer.AssertExpectations(t)
}

func TestKafkaPublisher_WrapsErrors(t *testing.T) {
	producer := new(MockProducer)
	cause := errors.New("broker unavailable")
	producer.On("Produce", mock.Anything, mock.Anything).Return(cause)

	err := NewKafkaPublisher(producer, "test").Publish(context.Background(),
		NewRegistrationEvent(TopicRegistrationCreated, sampleRegistration(), "", time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "reg-1")
}

func TestKafkaPublisher_Close(t *testing.T) {
	producer := new(MockProducer)
	producer.On("Close", mock.Anything).Return(nil).Once()
	require.NoError(t, NewKafkaPublisher(producer, "test").Close(context.Background()))
	producer.AssertExpectations(t)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(&logger.Config{Level: "info", ServiceName: "test", Output: &buf})
	require.NoError(t, err)

	pub := NewLogPublisher(log)
	require.NoError(t, pub.Publish(context.Background(),
		NewRegistrationEvent(TopicRegistrationFailed, sampleRegistration(), "expired", time.Now())))
	require.NoError(t, pub.Close(context.Background()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "registration.failed", line["event_type"])
	assert.Equal(t, "reg-1", line["registration_id"])
}
