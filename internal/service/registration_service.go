package service

import (
	"context"
	"fmt"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/payment"
	"github.com/fashionistas/ticketing/internal/repository"
	"go.uber.org/zap"
)

// registrationService implements the RegistrationService interface
type registrationService struct {
	*lifecycle
	eventRepo repository.EventRepository
	gateway   payment.Gateway
}

// NewRegistrationService creates a new RegistrationService
func NewRegistrationService(eventRepo repository.EventRepository, gateway payment.Gateway, deps Deps) RegistrationService {
	if gateway == nil {
		gateway = payment.NoopGateway{}
	}
	return &registrationService{
		lifecycle: newLifecycle(deps),
		eventRepo: eventRepo,
		gateway:   gateway,
	}
}

func (s *registrationService) get(ctx context.Context, id string) (*domain.Registration, error) {
	reg, err := s.regs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}
	return reg, nil
}

// GetRegistration returns a registration and its history to its buyer or an admin.
// Other callers get ErrRegistrationNotFound so ids cannot be probed.
func (s *registrationService) GetRegistration(ctx context.Context, id string, caller Caller) (*domain.Registration, []*domain.StatusTransition, error) {
	reg, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !caller.IsAdmin && reg.BuyerID != caller.UserID {
		return nil, nil, ErrRegistrationNotFound
	}
	history, err := s.regs.ListTransitions(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return reg, history, nil
}

// ListMine lists the caller's registrations, newest first
func (s *registrationService) ListMine(ctx context.Context, buyerID string, limit, offset int) ([]*domain.Registration, int, error) {
	return s.regs.ListByBuyer(ctx, buyerID, limit, offset)
}

// ListByEvent lists an event's registrations, newest first
func (s *registrationService) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*domain.Registration, int, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	if event == nil {
		return nil, 0, ErrEventNotFound
	}
	return s.regs.ListByEvent(ctx, eventID, limit, offset)
}

// Cancel moves a completed registration to cancelled. The tickets return to
// stock in the same write; the refund is requested afterwards and a failed
// refund is logged for manual follow-up rather than undoing the cancellation.
func (s *registrationService) Cancel(ctx context.Context, id, reason string, caller Caller) (*domain.Registration, error) {
	if !caller.IsAdmin {
		return nil, ErrForbidden
	}
	reg, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "cancelled by administrator"
	}

	cancelled, err := s.transition(ctx, reg, domain.PaymentStatusCancelled, reason, caller.UserID)
	if err != nil {
		return nil, err
	}

	if cancelled.PaymentReference != "" && cancelled.TotalAmount.IsPositive() {
		if err := s.gateway.Refund(ctx, cancelled.PaymentReference, cancelled.ID); err != nil {
			s.log.ErrorContext(ctx, "refund failed for cancelled registration",
				zap.String("registration_id", cancelled.ID),
				zap.String("payment_reference", cancelled.PaymentReference),
				zap.Error(err),
			)
			return cancelled, fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
	}
	return cancelled, nil
}
