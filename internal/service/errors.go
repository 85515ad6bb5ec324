package service

import "errors"

// Service errors
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrTicketTypeNotFound   = errors.New("ticket type not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	// ErrRegistrationClosed is returned when the event is not published or its deadline passed
	ErrRegistrationClosed = errors.New("registration is closed")
	// ErrInsufficientTickets is the business rejection for a quantity above the remaining stock
	ErrInsufficientTickets = errors.New("insufficient tickets available")

	ErrScheduleLocked         = errors.New("event schedule cannot change after tickets are sold")
	ErrEventNotDraft          = errors.New("only draft events can be published")
	ErrEventCancelled         = errors.New("event is cancelled")
	ErrForbidden              = errors.New("not allowed to access this registration")
	ErrRegistrationNotPending = errors.New("registration is not awaiting payment")
	ErrNothingToPay           = errors.New("registration has nothing to pay")

	// ErrRefundFailed is returned alongside the cancelled registration when the refund could not be issued
	ErrRefundFailed = errors.New("refund failed")
)
