package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/payment"
	"github.com/fashionistas/ticketing/internal/service"
	"github.com/fashionistas/ticketing/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
)

// respondError maps a service error to its HTTP response. Unmapped errors
// become a 500 with fallback as the message; their text never reaches the client.
func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)

	switch {
	// business rejections
	case errors.Is(err, service.ErrInsufficientTickets):
		c.JSON(http.StatusConflict, response.InsufficientStock(""))
	case errors.Is(err, service.ErrRegistrationClosed):
		c.JSON(http.StatusUnprocessableEntity, response.RegistrationClosed(""))

	// missing resources
	case errors.Is(err, service.ErrEventNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
	case errors.Is(err, service.ErrTicketTypeNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Ticket type not found"))
	case errors.Is(err, service.ErrRegistrationNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Registration not found"))

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, response.Forbidden(""))

	// malformed input caught by the domain model
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTicketType),
		errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, domain.ErrInvalidRegistration):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeValidationFailed, err.Error()))

	// state conflicts
	case errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrStatusConflict):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeInvalidTransition, "Registration cannot move to the requested status"))
	case errors.Is(err, service.ErrRegistrationNotPending):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeInvalidTransition, "Registration is not awaiting payment"))
	case errors.Is(err, service.ErrScheduleLocked):
		c.JSON(http.StatusConflict, response.Conflict("Event schedule cannot change after tickets are sold"))
	case errors.Is(err, service.ErrEventNotDraft):
		c.JSON(http.StatusConflict, response.Conflict("Only draft events can be published"))
	case errors.Is(err, service.ErrEventCancelled):
		c.JSON(http.StatusConflict, response.Conflict("Event is cancelled"))
	case errors.Is(err, service.ErrNothingToPay):
		c.JSON(http.StatusConflict, response.Conflict("Registration has nothing to pay"))

	// payment provider
	case errors.Is(err, payment.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeInvalidSignature, "Invalid webhook signature"))
	case errors.Is(err, payment.ErrPaymentsDisabled):
		c.JSON(http.StatusServiceUnavailable, response.ServiceUnavailable("Payments are not enabled"))
	case errors.Is(err, payment.ErrProvider):
		c.JSON(http.StatusBadGateway, response.Error(response.ErrCodePaymentFailed, "Payment provider request failed"))

	case isTransient(err):
		c.JSON(http.StatusServiceUnavailable, response.ServiceUnavailable(""))
	default:
		c.JSON(http.StatusInternalServerError, response.InternalError(fallback))
	}
}

// isTransient reports errors worth retrying by the client: cancelled or
// timed out requests and Postgres connection or serialization failures.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "53300":
			return true
		}
		return false
	}
	return pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded)
}
