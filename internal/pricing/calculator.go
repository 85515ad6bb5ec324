// Package pricing holds the pure ticket pricing rules: unit price tier
// selection, group discount, availability and purchase validation.
package pricing

import (
	"fmt"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/shopspring/decimal"
)

// Tier identifies which unit price was applied
type Tier string

const (
	TierStandard  Tier = "standard"
	TierEarlyBird Tier = "early_bird"
)

// amountPlaces is the number of decimal places kept in money amounts
const amountPlaces = 2

var hundred = decimal.NewFromInt(100)

// Quote is the price breakdown for a quantity of one ticket type
type Quote struct {
	Tier               Tier            `json:"tier"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Quantity           int             `json:"quantity"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Discount           decimal.Decimal `json:"discount"`
	Total              decimal.Decimal `json:"total"`
}

// CalculatePrice returns the total amount for quantity tickets at instant now
func CalculatePrice(tt *domain.TicketType, quantity int, now time.Time) (decimal.Decimal, error) {
	q, err := Calculate(tt, quantity, now)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Total, nil
}

// Calculate returns the full price breakdown for quantity tickets at instant now.
//
// The early-bird price applies while now is at or before the early-bird
// deadline. The group discount is applied once to the subtotal when quantity
// reaches the threshold. The total is rounded half-up to two places.
func Calculate(tt *domain.TicketType, quantity int, now time.Time) (*Quote, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	if tt == nil {
		return nil, fmt.Errorf("%w: ticket type is required", domain.ErrInvalidTicketType)
	}
	if err := tt.ValidatePricing(); err != nil {
		return nil, err
	}

	tier, unit := unitPrice(tt, now)
	subtotal := unit.Mul(decimal.NewFromInt(int64(quantity)))

	pct := decimal.Zero
	if tt.GroupDiscountThreshold != nil && tt.GroupDiscountPercentage != nil &&
		quantity >= *tt.GroupDiscountThreshold {
		pct = *tt.GroupDiscountPercentage
	}

	multiplier := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	total := roundHalfUp(subtotal.Mul(multiplier))

	return &Quote{
		Tier:               tier,
		UnitPrice:          unit,
		Quantity:           quantity,
		Subtotal:           roundHalfUp(subtotal),
		DiscountPercentage: pct,
		Discount:           roundHalfUp(subtotal).Sub(total),
		Total:              total,
	}, nil
}

func unitPrice(tt *domain.TicketType, now time.Time) (Tier, decimal.Decimal) {
	if tt.EarlyBirdDeadline != nil && tt.EarlyBirdPrice != nil && !now.After(*tt.EarlyBirdDeadline) {
		return TierEarlyBird, *tt.EarlyBirdPrice
	}
	return TierStandard, tt.BasePrice
}

// roundHalfUp rounds a non-negative amount to two places. Amounts here are
// never negative, so rounding half away from zero is rounding half up.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(amountPlaces)
}
