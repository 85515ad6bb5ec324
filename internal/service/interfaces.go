package service

import (
	"context"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/dto"
	"github.com/fashionistas/ticketing/internal/payment"
	"github.com/fashionistas/ticketing/internal/pricing"
)

// EventService defines the interface for event business logic
type EventService interface {
	// CreateEvent creates a new draft event
	CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*domain.Event, error)
	// GetEvent retrieves an event by ID
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	// ListEvents lists events with filters and pagination
	ListEvents(ctx context.Context, filter *dto.EventListFilter) ([]*domain.Event, int, error)
	// UpdateEvent updates an event; schedule fields are frozen once tickets are sold
	UpdateEvent(ctx context.Context, id string, req *dto.UpdateEventRequest) (*domain.Event, error)
	// PublishEvent opens a draft event for registration
	PublishEvent(ctx context.Context, id string) (*domain.Event, error)
}

// TicketTypeService defines the interface for ticket type business logic
type TicketTypeService interface {
	// CreateTicketType adds a ticket type to an event
	CreateTicketType(ctx context.Context, eventID string, req *dto.CreateTicketTypeRequest) (*domain.TicketType, error)
	// GetTicketType retrieves a ticket type by ID
	GetTicketType(ctx context.Context, id string) (*domain.TicketType, error)
	// ListByEvent lists the ticket types of an event
	ListByEvent(ctx context.Context, eventID string) ([]*domain.TicketType, error)
	// GetAvailability reports the remaining stock, and whether quantity fits when quantity > 0
	GetAvailability(ctx context.Context, id string, quantity int) (*dto.AvailabilityResponse, error)
	// Quote prices quantity tickets at the current time
	Quote(ctx context.Context, id string, quantity int) (*pricing.Quote, error)
}

// PurchaseService runs the validate-then-commit purchase flow
type PurchaseService interface {
	// Validate checks a purchase without committing it
	Validate(ctx context.Context, ticketTypeID, buyerID string, quantity int) (*pricing.ValidationResult, error)
	// Purchase commits a purchase. Business rejections are returned as
	// ErrRegistrationClosed or ErrInsufficientTickets.
	Purchase(ctx context.Context, in *PurchaseInput) (*PurchaseResult, error)
}

// RegistrationService defines the interface for registration queries and administration
type RegistrationService interface {
	// GetRegistration returns a registration and its history to its buyer or an admin
	GetRegistration(ctx context.Context, id string, caller Caller) (*domain.Registration, []*domain.StatusTransition, error)
	// ListMine lists the caller's registrations
	ListMine(ctx context.Context, buyerID string, limit, offset int) ([]*domain.Registration, int, error)
	// ListByEvent lists an event's registrations
	ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*domain.Registration, int, error)
	// Cancel moves a completed registration to cancelled, restocks and refunds
	Cancel(ctx context.Context, id, reason string, caller Caller) (*domain.Registration, error)
}

// PaymentService connects registrations with the payment provider
type PaymentService interface {
	// CreateIntent opens a payment intent for the caller's pending registration
	CreateIntent(ctx context.Context, registrationID string, caller Caller) (*domain.Registration, *payment.Intent, error)
	// HandleWebhook verifies a provider event and applies it
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// ExpiryService fails pending registrations whose payment window has passed
type ExpiryService interface {
	// ExpirePending processes one batch and returns how many registrations were failed
	ExpirePending(ctx context.Context) (int, error)
}

// Caller identifies the authenticated user making a request
type Caller struct {
	UserID  string
	IsAdmin bool
}

// PurchaseInput is a validated purchase request
type PurchaseInput struct {
	TicketTypeID string
	BuyerID      string
	Quantity     int
	Attendees    []domain.Attendee
}

// PurchaseResult is a committed purchase
type PurchaseResult struct {
	Registration *domain.Registration
	Quote        *pricing.Quote
}
