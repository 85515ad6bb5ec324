package dto

import (
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/pricing"
	"github.com/shopspring/decimal"
)

// CreateTicketTypeRequest represents the request to add a ticket type to an event.
// Prices accept JSON numbers or strings.
type CreateTicketTypeRequest struct {
	Name                    string           `json:"name" binding:"required,max=100"`
	Description             string           `json:"description"`
	BasePrice               decimal.Decimal  `json:"base_price"`
	QuantityAvailable       int              `json:"quantity_available" binding:"gte=0"`
	Benefits                []string         `json:"benefits"`
	EarlyBirdPrice          *decimal.Decimal `json:"early_bird_price"`
	EarlyBirdDeadline       *time.Time       `json:"early_bird_deadline"`
	GroupDiscountThreshold  *int             `json:"group_discount_threshold"`
	GroupDiscountPercentage *decimal.Decimal `json:"group_discount_percentage"`
}

// Validate validates the CreateTicketTypeRequest.
// Pricing rules are enforced by the domain model.
func (r *CreateTicketTypeRequest) Validate() (bool, string) {
	if r.Name == "" {
		return false, "Name is required"
	}
	if r.QuantityAvailable < 0 {
		return false, "Quantity available must not be negative"
	}
	return true, ""
}

// ToTicketType builds a ticket type for eventID
func (r *CreateTicketTypeRequest) ToTicketType(eventID string) *domain.TicketType {
	benefits := r.Benefits
	if benefits == nil {
		benefits = []string{}
	}
	return &domain.TicketType{
		EventID:                 eventID,
		Name:                    r.Name,
		Description:             r.Description,
		BasePrice:               r.BasePrice,
		QuantityAvailable:       r.QuantityAvailable,
		Benefits:                benefits,
		EarlyBirdPrice:          r.EarlyBirdPrice,
		EarlyBirdDeadline:       r.EarlyBirdDeadline,
		GroupDiscountThreshold:  r.GroupDiscountThreshold,
		GroupDiscountPercentage: r.GroupDiscountPercentage,
	}
}

// TicketTypeResponse represents a ticket type with money as fixed two-place strings
type TicketTypeResponse struct {
	ID                      string   `json:"id"`
	EventID                 string   `json:"event_id"`
	Name                    string   `json:"name"`
	Description             string   `json:"description"`
	BasePrice               string   `json:"base_price"`
	QuantityAvailable       int      `json:"quantity_available"`
	Benefits                []string `json:"benefits"`
	EarlyBirdPrice          string   `json:"early_bird_price,omitempty"`
	EarlyBirdDeadline       string   `json:"early_bird_deadline,omitempty"`
	GroupDiscountThreshold  *int     `json:"group_discount_threshold,omitempty"`
	GroupDiscountPercentage string   `json:"group_discount_percentage,omitempty"`
	CreatedAt               string   `json:"created_at"`
	UpdatedAt               string   `json:"updated_at"`
}

// Money formats an amount with two decimal places
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FromTicketType converts a domain TicketType to TicketTypeResponse
func FromTicketType(tt *domain.TicketType) *TicketTypeResponse {
	resp := &TicketTypeResponse{
		ID:                     tt.ID,
		EventID:                tt.EventID,
		Name:                   tt.Name,
		Description:            tt.Description,
		BasePrice:              Money(tt.BasePrice),
		QuantityAvailable:      tt.QuantityAvailable,
		Benefits:               tt.Benefits,
		GroupDiscountThreshold: tt.GroupDiscountThreshold,
		CreatedAt:              tt.CreatedAt.Format(timeLayout),
		UpdatedAt:              tt.UpdatedAt.Format(timeLayout),
	}
	if resp.Benefits == nil {
		resp.Benefits = []string{}
	}
	if tt.EarlyBirdPrice != nil {
		resp.EarlyBirdPrice = Money(*tt.EarlyBirdPrice)
	}
	if tt.EarlyBirdDeadline != nil {
		resp.EarlyBirdDeadline = tt.EarlyBirdDeadline.Format(timeLayout)
	}
	if tt.GroupDiscountPercentage != nil {
		resp.GroupDiscountPercentage = tt.GroupDiscountPercentage.String()
	}
	return resp
}

// FromTicketTypes converts a slice of ticket types
func FromTicketTypes(tts []*domain.TicketType) []*TicketTypeResponse {
	out := make([]*TicketTypeResponse, 0, len(tts))
	for _, tt := range tts {
		out = append(out, FromTicketType(tt))
	}
	return out
}

// AvailabilityResponse reports the remaining stock of a ticket type
type AvailabilityResponse struct {
	TicketTypeID      string `json:"ticket_type_id"`
	QuantityAvailable int    `json:"quantity_available"`
	SoldOut           bool   `json:"sold_out"`
	Requested         int    `json:"requested,omitempty"`
	Available         *bool  `json:"available,omitempty"`
}

// QuantityRequest is the body of quote and validate requests
type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

// QuoteResponse is a price breakdown
type QuoteResponse struct {
	TicketTypeID       string `json:"ticket_type_id"`
	Tier               string `json:"tier"`
	UnitPrice          string `json:"unit_price"`
	Quantity           int    `json:"quantity"`
	Subtotal           string `json:"subtotal"`
	DiscountPercentage string `json:"discount_percentage"`
	Discount           string `json:"discount"`
	Total              string `json:"total"`
	Currency           string `json:"currency"`
}

// FromQuote converts a pricing Quote to QuoteResponse
func FromQuote(ticketTypeID, currency string, q *pricing.Quote) *QuoteResponse {
	return &QuoteResponse{
		TicketTypeID:       ticketTypeID,
		Tier:               string(q.Tier),
		UnitPrice:          Money(q.UnitPrice),
		Quantity:           q.Quantity,
		Subtotal:           Money(q.Subtotal),
		DiscountPercentage: q.DiscountPercentage.String(),
		Discount:           Money(q.Discount),
		Total:              Money(q.Total),
		Currency:           currency,
	}
}

// ValidationResponse is the outcome of a purchase validation
type ValidationResponse struct {
	IsValid     bool           `json:"is_valid"`
	Reason      string         `json:"reason,omitempty"`
	TotalAmount string         `json:"total_amount"`
	Quote       *QuoteResponse `json:"quote,omitempty"`
}

// FromValidation converts a pricing ValidationResult
func FromValidation(ticketTypeID, currency string, v *pricing.ValidationResult) *ValidationResponse {
	resp := &ValidationResponse{
		IsValid:     v.IsValid,
		Reason:      v.Reason,
		TotalAmount: Money(v.TotalAmount),
	}
	if v.Quote != nil {
		resp.Quote = FromQuote(ticketTypeID, currency, v.Quote)
	}
	return resp
}
