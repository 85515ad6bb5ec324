// Package inventory commits purchases against a ticket type's remaining
// quantity. The check and the decrement happen in one conditional write in
// the backing store, so concurrent commits on the same ticket type can never
// take the counter below zero.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/google/uuid"
)

// Store persists a purchase atomically.
type Store interface {
	// CommitPurchase decrements the ticket type's quantity_available by
	// quantity only if enough remains, and inserts reg with its attendees in
	// the same transaction. It returns domain.ErrInsufficientInventory when
	// the conditional decrement matched no row. Nothing is written on error.
	CommitPurchase(ctx context.Context, ticketTypeID string, quantity int, reg *domain.Registration) error
}

// Mutator is the only writer of ticket inventory on the purchase path
type Mutator struct {
	store Store
	now   func() time.Time
}

// NewMutator creates a new Mutator backed by store
func NewMutator(store Store) *Mutator {
	return &Mutator{
		store: store,
		now:   time.Now,
	}
}

// CommitPurchase decrements inventory and records the registration.
//
// The caller must have validated the purchase against the same ticket type.
// Lost races surface as domain.ErrInsufficientInventory; the mutator never
// retries on its own and passes storage errors through.
func (m *Mutator) CommitPurchase(ctx context.Context, ticketTypeID string, quantity int, reg *domain.Registration) (*domain.Registration, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	if ticketTypeID == "" || reg == nil {
		return nil, fmt.Errorf("%w: ticket type and registration are required", domain.ErrValidation)
	}

	now := m.now()
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	reg.TicketTypeID = ticketTypeID
	reg.Quantity = quantity
	if reg.PaymentStatus == "" {
		reg.PaymentStatus = domain.PaymentStatusPending
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	if err := reg.Validate(); err != nil {
		return nil, err
	}

	if err := m.store.CommitPurchase(ctx, ticketTypeID, quantity, reg); err != nil {
		return nil, fmt.Errorf("commit purchase for ticket type %s: %w", ticketTypeID, err)
	}

	return reg, nil
}
