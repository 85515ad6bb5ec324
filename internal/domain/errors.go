package domain

import "errors"

// Pricing and inventory errors
var (
	// ErrInvalidQuantity is returned when a requested quantity is below one
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidTicketType is returned when a ticket type has missing or negative price fields
	ErrInvalidTicketType = errors.New("invalid ticket type")
	// ErrValidation is returned for malformed purchase input (negative quantity, missing buyer)
	ErrValidation = errors.New("validation error")
	// ErrInsufficientInventory is returned when the conditional decrement affected no rows
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// Entity errors
var (
	ErrInvalidEvent            = errors.New("invalid event")
	ErrInvalidRegistration     = errors.New("invalid registration")
	ErrInvalidStatusTransition = errors.New("invalid payment status transition")
	ErrStatusConflict          = errors.New("registration status changed concurrently")
)
