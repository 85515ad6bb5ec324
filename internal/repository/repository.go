package repository

import (
	"context"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/inventory"
)

// EventFilter narrows event listings
type EventFilter struct {
	Status string
	Limit  int
	Offset int
}

// EventRepository defines the interface for event data access
type EventRepository interface {
	// Create persists a new event
	Create(ctx context.Context, event *domain.Event) error

	// GetByID retrieves an event by ID, returning nil when it does not exist
	GetByID(ctx context.Context, id string) (*domain.Event, error)

	// List returns events matching the filter and the total count
	List(ctx context.Context, filter EventFilter) ([]*domain.Event, int, error)

	// Update overwrites the mutable fields of an event
	Update(ctx context.Context, event *domain.Event) error

	// CountTicketsSold sums the quantity of non-released registrations for an event
	CountTicketsSold(ctx context.Context, eventID string) (int, error)

	// UpdateChecked writes the event only when check accepts its current
	// ticket types and sold count. No purchase for the event commits between
	// the check and the write.
	UpdateChecked(ctx context.Context, event *domain.Event, check EventUpdateCheck) error
}

// EventUpdateCheck vets an event update against the event's inventory
type EventUpdateCheck func(ticketTypes []*domain.TicketType, sold int) error

// TicketTypeRepository defines the interface for ticket type data access
type TicketTypeRepository interface {
	// Create persists a new ticket type
	Create(ctx context.Context, tt *domain.TicketType) error

	// GetByID retrieves a ticket type by ID, returning nil when it does not exist
	GetByID(ctx context.Context, id string) (*domain.TicketType, error)

	// ListByEvent returns all ticket types of an event ordered by base price
	ListByEvent(ctx context.Context, eventID string) ([]*domain.TicketType, error)
}

// RegistrationRepository defines the interface for registration data access.
// Registrations are created through inventory.Store.CommitPurchase only.
type RegistrationRepository interface {
	inventory.Store

	// GetByID retrieves a registration with its attendees, returning nil when it does not exist
	GetByID(ctx context.Context, id string) (*domain.Registration, error)

	// GetByPaymentReference retrieves a registration by its payment provider reference
	GetByPaymentReference(ctx context.Context, reference string) (*domain.Registration, error)

	// ListByBuyer returns a buyer's registrations, newest first, and the total count
	ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]*domain.Registration, int, error)

	// ListByEvent returns an event's registrations, newest first, and the total count
	ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*domain.Registration, int, error)

	// ListPendingBefore returns up to limit pending registrations created before cutoff
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error)

	// SetPaymentReference stores the payment provider reference of a pending registration
	SetPaymentReference(ctx context.Context, id, reference string) error

	// ApplyTransition moves a registration from t.FromStatus to t.ToStatus only
	// if its current status is still t.FromStatus, returns released tickets to
	// the ticket type when the target status releases inventory, and records
	// the transition. It returns domain.ErrStatusConflict when the status no
	// longer matches.
	ApplyTransition(ctx context.Context, t *domain.StatusTransition) (*domain.Registration, error)

	// ListTransitions returns the status history of a registration, oldest first
	ListTransitions(ctx context.Context, registrationID string) ([]*domain.StatusTransition, error)
}
