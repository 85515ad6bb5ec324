package domain

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the payment state of a registration
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// validTransitions defines allowed payment status transitions.
// Key is current status, value is the list of allowed next statuses.
var validTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusCancelled},
	PaymentStatusFailed:    {},
	PaymentStatusCancelled: {},
}

// IsValid returns true if the status is a known payment status
func (s PaymentStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// IsTerminal returns true if no further transition is possible
func (s PaymentStatus) IsTerminal() bool {
	return s.IsValid() && len(validTransitions[s]) == 0
}

// CanTransitionTo returns true if moving to target is allowed
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ReleasesInventory reports whether entering this status returns the
// registration's tickets to the ticket type.
func (s PaymentStatus) ReleasesInventory() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// Attendee holds the details of the person using one ticket
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Registration records a single purchase
type Registration struct {
	ID               string          `json:"id"`
	EventID          string          `json:"event_id"`
	TicketTypeID     string          `json:"ticket_type_id"`
	BuyerID          string          `json:"buyer_id"`
	Quantity         int             `json:"quantity"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Attendees        []Attendee      `json:"attendees"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
}

// Validate checks the registration invariants before it is persisted
func (r *Registration) Validate() error {
	if r.BuyerID == "" {
		return fmt.Errorf("%w: buyer is required", ErrInvalidRegistration)
	}
	if r.EventID == "" || r.TicketTypeID == "" {
		return fmt.Errorf("%w: event and ticket type are required", ErrInvalidRegistration)
	}
	if r.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRegistration)
	}
	if r.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: total amount must not be negative", ErrInvalidRegistration)
	}
	if !r.PaymentStatus.IsValid() {
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalidRegistration, r.PaymentStatus)
	}
	if len(r.Attendees) != r.Quantity {
		return fmt.Errorf("%w: expected %d attendees, got %d", ErrInvalidRegistration, r.Quantity, len(r.Attendees))
	}
	for i, a := range r.Attendees {
		if a.Name == "" {
			return fmt.Errorf("%w: attendee %d name is required", ErrInvalidRegistration, i+1)
		}
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return fmt.Errorf("%w: attendee %d email is invalid", ErrInvalidRegistration, i+1)
		}
	}
	return nil
}

// StatusTransition is one recorded payment status change
type StatusTransition struct {
	ID             string        `json:"id"`
	RegistrationID string        `json:"registration_id"`
	FromStatus     PaymentStatus `json:"from_status"`
	ToStatus       PaymentStatus `json:"to_status"`
	Reason         string        `json:"reason,omitempty"`
	Actor          string        `json:"actor,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewStatusTransition builds a transition record after checking it is allowed
func NewStatusTransition(reg *Registration, to PaymentStatus, reason, actor string, at time.Time) (*StatusTransition, error) {
	if !reg.PaymentStatus.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, reg.PaymentStatus, to)
	}
	return &StatusTransition{
		RegistrationID: reg.ID,
		FromStatus:     reg.PaymentStatus,
		ToStatus:       to,
		Reason:         reason,
		Actor:          actor,
		CreatedAt:      at,
	}, nil
}
