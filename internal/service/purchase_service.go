package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/events"
	"github.com/fashionistas/ticketing/internal/inventory"
	"github.com/fashionistas/ticketing/internal/pricing"
	"github.com/fashionistas/ticketing/internal/repository"
	"github.com/fashionistas/ticketing/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PurchaseConfig tunes the purchase flow
type PurchaseConfig struct {
	Currency string
	// ConflictRetries is how many times a lost inventory race is re-validated and retried
	ConflictRetries int
}

// purchaseService implements the PurchaseService interface
type purchaseService struct {
	*lifecycle
	ticketTypeRepo repository.TicketTypeRepository
	eventRepo      repository.EventRepository
	mutator        *inventory.Mutator
	config         PurchaseConfig
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	ticketTypeRepo repository.TicketTypeRepository,
	eventRepo repository.EventRepository,
	deps Deps,
	config PurchaseConfig,
) PurchaseService {
	if config.Currency == "" {
		config.Currency = "usd"
	}
	if config.ConflictRetries < 0 {
		config.ConflictRetries = 0
	}
	return &purchaseService{
		lifecycle:      newLifecycle(deps),
		ticketTypeRepo: ticketTypeRepo,
		eventRepo:      eventRepo,
		mutator:        inventory.NewMutator(deps.Registrations),
		config:         config,
	}
}

func (s *purchaseService) load(ctx context.Context, ticketTypeID string) (*domain.TicketType, *domain.Event, error) {
	tt, err := s.ticketTypeRepo.GetByID(ctx, ticketTypeID)
	if err != nil {
		return nil, nil, err
	}
	if tt == nil {
		return nil, nil, ErrTicketTypeNotFound
	}
	event, err := s.eventRepo.GetByID(ctx, tt.EventID)
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return nil, nil, ErrEventNotFound
	}
	return tt, event, nil
}

// Validate checks a purchase without committing it
func (s *purchaseService) Validate(ctx context.Context, ticketTypeID, buyerID string, quantity int) (*pricing.ValidationResult, error) {
	tt, event, err := s.load(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !event.IsOpenForRegistration(now) {
		return nil, ErrRegistrationClosed
	}
	return pricing.ValidatePurchase(tt, quantity, buyerID, now)
}

// Purchase validates and commits a purchase. A commit that loses the race for
// the last tickets is re-read, re-validated and retried up to ConflictRetries times.
func (s *purchaseService) Purchase(ctx context.Context, in *PurchaseInput) (result *PurchaseResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "purchase")
	defer span.End()
	span.SetAttributes(
		telemetry.TicketTypeAttr(in.TicketTypeID),
		attribute.Int("purchase.quantity", in.Quantity),
	)

	defer func() {
		s.metrics.RecordPurchase(ctx, in.TicketTypeID, purchaseOutcome(err))
		if err != nil && purchaseOutcome(err) == telemetry.OutcomeError {
			telemetry.SetSpanError(ctx, err)
		}
	}()

	tt, event, err := s.load(ctx, in.TicketTypeID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.EventAttr(event.ID))

	now := s.now()
	if !event.IsOpenForRegistration(now) {
		return nil, ErrRegistrationClosed
	}

	var (
		reg   *domain.Registration
		quote *pricing.Quote
	)
	for attempt := 0; ; attempt++ {
		validation, err := pricing.ValidatePurchase(tt, in.Quantity, in.BuyerID, now)
		if err != nil {
			return nil, err
		}
		if !validation.IsValid {
			return nil, ErrInsufficientTickets
		}
		quote = validation.Quote

		reg, err = s.mutator.CommitPurchase(ctx, tt.ID, in.Quantity, &domain.Registration{
			EventID:       event.ID,
			BuyerID:       in.BuyerID,
			TotalAmount:   validation.TotalAmount,
			Currency:      s.config.Currency,
			PaymentStatus: domain.PaymentStatusPending,
			Attendees:     in.Attendees,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrInsufficientInventory) {
			return nil, err
		}

		s.metrics.RecordConflict(ctx, tt.ID)
		if attempt >= s.config.ConflictRetries {
			return nil, ErrInsufficientTickets
		}
		s.log.InfoContext(ctx, "inventory conflict, retrying purchase",
			zap.String("ticket_type_id", tt.ID),
			zap.Int("attempt", attempt+1),
		)
		if tt, err = s.ticketTypeRepo.GetByID(ctx, tt.ID); err != nil {
			return nil, err
		}
		if tt == nil {
			return nil, ErrTicketTypeNotFound
		}
	}

	s.invalidate(ctx, tt.ID)
	s.metrics.RecordCommit(ctx, tt.ID, string(quote.Tier), reg.Quantity, reg.TotalAmount.InexactFloat64())
	s.publish(ctx, events.TopicRegistrationCreated, reg, "")

	if reg.TotalAmount.IsZero() {
		completed, err := s.transition(ctx, reg, domain.PaymentStatusCompleted, "no payment due", ActorSystem)
		if err != nil {
			return nil, fmt.Errorf("complete free registration %s: %w", reg.ID, err)
		}
		reg = completed
	}

	s.log.InfoContext(ctx, "purchase committed",
		zap.String("registration_id", reg.ID),
		zap.String("ticket_type_id", tt.ID),
		zap.Int("quantity", reg.Quantity),
		zap.String("total", reg.TotalAmount.StringFixed(2)),
		zap.String("currency", strings.ToUpper(reg.Currency)),
	)
	return &PurchaseResult{Registration: reg, Quote: quote}, nil
}

func purchaseOutcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeCommitted
	case errors.Is(err, ErrInsufficientTickets):
		return telemetry.OutcomeInsufficientStock
	case errors.Is(err, ErrRegistrationClosed):
		return telemetry.OutcomeRegistrationClosed
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidRegistration),
		errors.Is(err, domain.ErrInvalidTicketType),
		errors.Is(err, ErrTicketTypeNotFound),
		errors.Is(err, ErrEventNotFound):
		return telemetry.OutcomeInvalid
	default:
		return telemetry.OutcomeError
	}
}
