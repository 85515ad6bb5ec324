// Package events publishes registration lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/shopspring/decimal"
)

// Topic names for registration events
const (
	TopicRegistrationCreated   = "registration.created"
	TopicRegistrationCompleted = "registration.completed"
	TopicRegistrationFailed    = "registration.failed"
	TopicRegistrationCancelled = "registration.cancelled"
)

// Topics lists every topic this service writes to
var Topics = []string{
	TopicRegistrationCreated,
	TopicRegistrationCompleted,
	TopicRegistrationFailed,
	TopicRegistrationCancelled,
}

// TopicForStatus returns the topic announcing entry into status
func TopicForStatus(status domain.PaymentStatus) string {
	switch status {
	case domain.PaymentStatusCompleted:
		return TopicRegistrationCompleted
	case domain.PaymentStatusFailed:
		return TopicRegistrationFailed
	case domain.PaymentStatusCancelled:
		return TopicRegistrationCancelled
	default:
		return TopicRegistrationCreated
	}
}

// RegistrationEvent is the payload of every registration topic
type RegistrationEvent struct {
	EventType        string               `json:"event_type"`
	RegistrationID   string               `json:"registration_id"`
	EventID          string               `json:"event_id"`
	TicketTypeID     string               `json:"ticket_type_id"`
	BuyerID          string               `json:"buyer_id"`
	Quantity         int                  `json:"quantity"`
	TotalAmount      decimal.Decimal      `json:"total_amount"`
	Currency         string               `json:"currency"`
	PaymentStatus    domain.PaymentStatus `json:"payment_status"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	Reason           string               `json:"reason,omitempty"`
	Timestamp        time.Time            `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *RegistrationEvent) Key() string {
	return e.RegistrationID
}

// NewRegistrationEvent snapshots reg for topic
func NewRegistrationEvent(topic string, reg *domain.Registration, reason string, at time.Time) *RegistrationEvent {
	return &RegistrationEvent{
		EventType:        topic,
		RegistrationID:   reg.ID,
		EventID:          reg.EventID,
		TicketTypeID:     reg.TicketTypeID,
		BuyerID:          reg.BuyerID,
		Quantity:         reg.Quantity,
		TotalAmount:      reg.TotalAmount,
		Currency:         reg.Currency,
		PaymentStatus:    reg.PaymentStatus,
		PaymentReference: reg.PaymentReference,
		Reason:           reason,
		Timestamp:        at.UTC(),
	}
}

// Publisher delivers registration events
type Publisher interface {
	Publish(ctx context.Context, event *RegistrationEvent) error
	Close(ctx context.Context) error
}
