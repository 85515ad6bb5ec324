package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fashionistas/ticketing/internal/cache"
	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/dto"
	"github.com/fashionistas/ticketing/internal/pricing"
	"github.com/fashionistas/ticketing/internal/repository"
	"github.com/fashionistas/ticketing/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ticketTypeService implements the TicketTypeService interface
type ticketTypeService struct {
	ticketTypeRepo repository.TicketTypeRepository
	eventRepo      repository.EventRepository
	cache          cache.AvailabilityCache
	log            *logger.Logger
	now            func() time.Time
}

// NewTicketTypeService creates a new TicketTypeService
func NewTicketTypeService(
	ticketTypeRepo repository.TicketTypeRepository,
	eventRepo repository.EventRepository,
	availability cache.AvailabilityCache,
	log *logger.Logger,
) TicketTypeService {
	if availability == nil {
		availability = cache.NoopAvailabilityCache{}
	}
	return &ticketTypeService{
		ticketTypeRepo: ticketTypeRepo,
		eventRepo:      eventRepo,
		cache:          availability,
		log:            log,
		now:            time.Now,
	}
}

// CreateTicketType adds a ticket type to an event
func (s *ticketTypeService) CreateTicketType(ctx context.Context, eventID string, req *dto.CreateTicketTypeRequest) (*domain.TicketType, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if event.Status == domain.EventStatusCancelled {
		return nil, ErrEventCancelled
	}

	tt := req.ToTicketType(eventID)
	if err := tt.Validate(event); err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, event, tt.QuantityAvailable); err != nil {
		return nil, err
	}

	now := s.now()
	tt.ID = uuid.New().String()
	tt.CreatedAt = now
	tt.UpdatedAt = now

	if err := s.ticketTypeRepo.Create(ctx, tt); err != nil {
		return nil, fmt.Errorf("create ticket type: %w", err)
	}
	return tt, nil
}

// checkCapacity keeps the event's total inventory, sold tickets included,
// within the venue capacity
func (s *ticketTypeService) checkCapacity(ctx context.Context, event *domain.Event, adding int) error {
	existing, err := s.ticketTypeRepo.ListByEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	sold, err := s.eventRepo.CountTicketsSold(ctx, event.ID)
	if err != nil {
		return err
	}

	total := sold + adding
	for _, tt := range existing {
		total += tt.QuantityAvailable
	}
	if total > event.Capacity {
		return fmt.Errorf("%w: %d tickets would exceed the event capacity of %d",
			domain.ErrInvalidTicketType, total, event.Capacity)
	}
	return nil
}

// GetTicketType retrieves a ticket type by ID
func (s *ticketTypeService) GetTicketType(ctx context.Context, id string) (*domain.TicketType, error) {
	tt, err := s.ticketTypeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tt == nil {
		return nil, ErrTicketTypeNotFound
	}
	return tt, nil
}

// ListByEvent lists the ticket types of an event
func (s *ticketTypeService) ListByEvent(ctx context.Context, eventID string) ([]*domain.TicketType, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return s.ticketTypeRepo.ListByEvent(ctx, eventID)
}

// GetAvailability reads through the availability cache. Cache failures fall
// back to the database.
func (s *ticketTypeService) GetAvailability(ctx context.Context, id string, quantity int) (*dto.AvailabilityResponse, error) {
	remaining, hit, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.WarnContext(ctx, "availability cache read failed", zap.String("ticket_type_id", id), zap.Error(err))
		hit = false
	}

	if !hit {
		tt, err := s.GetTicketType(ctx, id)
		if err != nil {
			return nil, err
		}
		remaining = tt.QuantityAvailable
		if err := s.cache.Set(ctx, id, remaining); err != nil {
			s.log.WarnContext(ctx, "availability cache write failed", zap.String("ticket_type_id", id), zap.Error(err))
		}
	}

	resp := &dto.AvailabilityResponse{
		TicketTypeID:      id,
		QuantityAvailable: remaining,
		SoldOut:           remaining == 0,
	}
	if quantity > 0 {
		ok := pricing.IsAvailable(&domain.TicketType{QuantityAvailable: remaining}, quantity)
		resp.Requested = quantity
		resp.Available = &ok
	}
	return resp, nil
}

// Quote prices quantity tickets at the current time
func (s *ticketTypeService) Quote(ctx context.Context, id string, quantity int) (*pricing.Quote, error) {
	tt, err := s.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}
	return pricing.Calculate(tt, quantity, s.now())
}
