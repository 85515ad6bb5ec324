package dto

import (
	"fmt"
	"net/mail"

	"github.com/fashionistas/ticketing/internal/domain"
)

// AttendeeRequest is one attendee of a purchase
type AttendeeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PurchaseRequest represents a purchase of one ticket type
type PurchaseRequest struct {
	Quantity  int               `json:"quantity"`
	Attendees []AttendeeRequest `json:"attendees"`
}

// Validate validates the PurchaseRequest and returns per-field problems
func (r *PurchaseRequest) Validate() (bool, map[string]string) {
	details := map[string]string{}
	if r.Quantity < 1 {
		details["quantity"] = "must be at least 1"
	}
	if r.Quantity >= 1 && len(r.Attendees) != r.Quantity {
		details["attendees"] = fmt.Sprintf("expected %d attendees, got %d", r.Quantity, len(r.Attendees))
	}
	for i, a := range r.Attendees {
		if a.Name == "" {
			details[fmt.Sprintf("attendees[%d].name", i)] = "is required"
		}
		if _, err := mail.ParseAddress(a.Email); err != nil {
			details[fmt.Sprintf("attendees[%d].email", i)] = "is not a valid email address"
		}
	}
	return len(details) == 0, details
}

// ToAttendees converts the request attendees to domain attendees
func (r *PurchaseRequest) ToAttendees() []domain.Attendee {
	out := make([]domain.Attendee, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		out = append(out, domain.Attendee{Name: a.Name, Email: a.Email})
	}
	return out
}

// CancelRegistrationRequest is the body of an administrative cancellation
type CancelRegistrationRequest struct {
	Reason string `json:"reason"`
}

// RegistrationResponse represents a registration
type RegistrationResponse struct {
	ID               string            `json:"id"`
	EventID          string            `json:"event_id"`
	TicketTypeID     string            `json:"ticket_type_id"`
	BuyerID          string            `json:"buyer_id"`
	Quantity         int               `json:"quantity"`
	TotalAmount      string            `json:"total_amount"`
	Currency         string            `json:"currency"`
	PaymentStatus    string            `json:"payment_status"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	Attendees        []domain.Attendee `json:"attendees"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
	CompletedAt      string            `json:"completed_at,omitempty"`
	CancelledAt      string            `json:"cancelled_at,omitempty"`
}

// FromRegistration converts a domain Registration to RegistrationResponse
func FromRegistration(r *domain.Registration) *RegistrationResponse {
	resp := &RegistrationResponse{
		ID:               r.ID,
		EventID:          r.EventID,
		TicketTypeID:     r.TicketTypeID,
		BuyerID:          r.BuyerID,
		Quantity:         r.Quantity,
		TotalAmount:      Money(r.TotalAmount),
		Currency:         r.Currency,
		PaymentStatus:    string(r.PaymentStatus),
		PaymentReference: r.PaymentReference,
		Attendees:        r.Attendees,
		CreatedAt:        r.CreatedAt.Format(timeLayout),
		UpdatedAt:        r.UpdatedAt.Format(timeLayout),
	}
	if resp.Attendees == nil {
		resp.Attendees = []domain.Attendee{}
	}
	if r.CompletedAt != nil {
		resp.CompletedAt = r.CompletedAt.Format(timeLayout)
	}
	if r.CancelledAt != nil {
		resp.CancelledAt = r.CancelledAt.Format(timeLayout)
	}
	return resp
}

// FromRegistrations converts a slice of registrations
func FromRegistrations(regs []*domain.Registration) []*RegistrationResponse {
	out := make([]*RegistrationResponse, 0, len(regs))
	for _, r := range regs {
		out = append(out, FromRegistration(r))
	}
	return out
}

// StatusTransitionResponse is one entry of a registration's history
type StatusTransitionResponse struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason,omitempty"`
	Actor      string `json:"actor,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// RegistrationDetailResponse is a registration with its status history
type RegistrationDetailResponse struct {
	*RegistrationResponse
	History []*StatusTransitionResponse `json:"history"`
}

// FromRegistrationDetail converts a registration and its history
func FromRegistrationDetail(r *domain.Registration, history []*domain.StatusTransition) *RegistrationDetailResponse {
	resp := &RegistrationDetailResponse{
		RegistrationResponse: FromRegistration(r),
		History:              make([]*StatusTransitionResponse, 0, len(history)),
	}
	for _, t := range history {
		resp.History = append(resp.History, &StatusTransitionResponse{
			FromStatus: string(t.FromStatus),
			ToStatus:   string(t.ToStatus),
			Reason:     t.Reason,
			Actor:      t.Actor,
			CreatedAt:  t.CreatedAt.Format(timeLayout),
		})
	}
	return resp
}

// PaymentIntentResponse carries what the client needs to confirm a card payment
type PaymentIntentResponse struct {
	RegistrationID string `json:"registration_id"`
	IntentID       string `json:"payment_intent_id"`
	ClientSecret   string `json:"client_secret"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

// PurchaseResponse is a committed purchase with its price breakdown
type PurchaseResponse struct {
	Registration *RegistrationResponse `json:"registration"`
	Quote        *QuoteResponse        `json:"quote"`
}
