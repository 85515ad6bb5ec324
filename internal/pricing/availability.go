package pricing

import "github.com/fashionistas/ticketing/internal/domain"

// IsAvailable reports whether quantity tickets can be taken from the
// ticket type's remaining inventory. It does not reserve anything.
func IsAvailable(tt *domain.TicketType, quantity int) bool {
	if tt == nil {
		return false
	}
	return quantity >= 1 && quantity <= tt.QuantityAvailable
}
