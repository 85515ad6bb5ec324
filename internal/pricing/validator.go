package pricing

import (
	"fmt"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/shopspring/decimal"
)

// ReasonInsufficientTickets is the rejection reason shown to buyers when the
// requested quantity exceeds the remaining inventory.
const ReasonInsufficientTickets = "Insufficient tickets available"

// ValidationResult is the outcome of a purchase validation.
// Business rejections are reported here, not as errors.
type ValidationResult struct {
	IsValid     bool            `json:"is_valid"`
	Reason      string          `json:"reason,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Quote       *Quote          `json:"quote,omitempty"`
}

// Rejected builds a failed validation result with the given reason
func Rejected(reason string) *ValidationResult {
	return &ValidationResult{IsValid: false, Reason: reason, TotalAmount: decimal.Zero}
}

// ValidatePurchase checks availability and prices the purchase.
// It returns domain.ErrValidation only for malformed input.
func ValidatePurchase(tt *domain.TicketType, quantity int, buyerID string, now time.Time) (*ValidationResult, error) {
	if tt == nil {
		return nil, fmt.Errorf("%w: ticket type is required", domain.ErrInvalidTicketType)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", domain.ErrValidation)
	}
	if buyerID == "" {
		return nil, fmt.Errorf("%w: buyer id is required", domain.ErrValidation)
	}

	if !IsAvailable(tt, quantity) {
		return Rejected(ReasonInsufficientTickets), nil
	}

	quote, err := Calculate(tt, quantity, now)
	if err != nil {
		return nil, err
	}

	return &ValidationResult{
		IsValid:     true,
		TotalAmount: quote.Total,
		Quote:       quote,
	}, nil
}
