package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TicketType represents a purchasable ticket category for an event
type TicketType struct {
	ID                      string           `json:"id"`
	EventID                 string           `json:"event_id"`
	Name                    string           `json:"name"`
	Description             string           `json:"description"`
	BasePrice               decimal.Decimal  `json:"base_price"`
	QuantityAvailable       int              `json:"quantity_available"`
	Benefits                []string         `json:"benefits"`
	EarlyBirdPrice          *decimal.Decimal `json:"early_bird_price,omitempty"`
	EarlyBirdDeadline       *time.Time       `json:"early_bird_deadline,omitempty"`
	GroupDiscountThreshold  *int             `json:"group_discount_threshold,omitempty"`
	GroupDiscountPercentage *decimal.Decimal `json:"group_discount_percentage,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// HasEarlyBird reports whether an early-bird window is configured
func (t *TicketType) HasEarlyBird() bool {
	return t.EarlyBirdDeadline != nil
}

// HasGroupDiscount reports whether a group discount tier is configured
func (t *TicketType) HasGroupDiscount() bool {
	return t.GroupDiscountThreshold != nil
}

// ValidatePricing checks the price fields used by the price calculator.
// Every violation wraps ErrInvalidTicketType.
func (t *TicketType) ValidatePricing() error {
	if t.BasePrice.IsNegative() {
		return fmt.Errorf("%w: base price must not be negative", ErrInvalidTicketType)
	}
	if t.EarlyBirdDeadline != nil && t.EarlyBirdPrice == nil {
		return fmt.Errorf("%w: early-bird deadline set without early-bird price", ErrInvalidTicketType)
	}
	if t.EarlyBirdPrice != nil {
		if t.EarlyBirdPrice.IsNegative() {
			return fmt.Errorf("%w: early-bird price must not be negative", ErrInvalidTicketType)
		}
		if t.EarlyBirdPrice.GreaterThan(t.BasePrice) {
			return fmt.Errorf("%w: early-bird price must not exceed base price", ErrInvalidTicketType)
		}
	}
	if t.GroupDiscountPercentage != nil {
		if t.GroupDiscountThreshold == nil {
			return fmt.Errorf("%w: group discount percentage set without threshold", ErrInvalidTicketType)
		}
		if t.GroupDiscountPercentage.IsNegative() || t.GroupDiscountPercentage.GreaterThan(hundred) {
			return fmt.Errorf("%w: group discount percentage must be between 0 and 100", ErrInvalidTicketType)
		}
	}
	if t.GroupDiscountThreshold != nil && *t.GroupDiscountThreshold < 1 {
		return fmt.Errorf("%w: group discount threshold must be positive", ErrInvalidTicketType)
	}
	return nil
}

// Validate checks all ticket type invariants against its owning event
func (t *TicketType) Validate(event *Event) error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTicketType)
	}
	if t.QuantityAvailable < 0 {
		return fmt.Errorf("%w: quantity available must not be negative", ErrInvalidTicketType)
	}
	if err := t.ValidatePricing(); err != nil {
		return err
	}
	if event != nil && t.EarlyBirdDeadline != nil && t.EarlyBirdDeadline.After(event.RegistrationDeadline) {
		return fmt.Errorf("%w: early-bird deadline must be at or before the registration deadline", ErrInvalidTicketType)
	}
	return nil
}
