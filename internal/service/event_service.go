package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/dto"
	"github.com/fashionistas/ticketing/internal/repository"
	"github.com/google/uuid"
)

// eventService implements the EventService interface
type eventService struct {
	eventRepo repository.EventRepository
	now       func() time.Time
}

// NewEventService creates a new EventService
func NewEventService(eventRepo repository.EventRepository) EventService {
	return &eventService{
		eventRepo: eventRepo,
		now:       time.Now,
	}
}

// CreateEvent creates a new draft event
func (s *eventService) CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*domain.Event, error) {
	event := req.ToEvent()
	if err := event.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	event.ID = uuid.New().String()
	event.CreatedAt = now
	event.UpdatedAt = now

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// GetEvent retrieves an event by ID
func (s *eventService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// ListEvents lists events with filters and pagination
func (s *eventService) ListEvents(ctx context.Context, filter *dto.EventListFilter) ([]*domain.Event, int, error) {
	filter.SetDefaults()
	return s.eventRepo.List(ctx, repository.EventFilter{
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// UpdateEvent updates an event
func (s *eventService) UpdateEvent(ctx context.Context, id string, req *dto.UpdateEventRequest) (*domain.Event, error) {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.EventStatusCancelled {
		return nil, ErrEventCancelled
	}

	updated := req.Apply(current)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now()

	if !current.ScheduleChanged(updated) {
		if err := s.eventRepo.Update(ctx, updated); err != nil {
			return nil, fmt.Errorf("update event %s: %w", id, err)
		}
		return updated, nil
	}

	err = s.eventRepo.UpdateChecked(ctx, updated, func(ticketTypes []*domain.TicketType, sold int) error {
		if sold > 0 {
			return ErrScheduleLocked
		}
		return checkInventoryFits(updated, ticketTypes)
	})
	if err != nil {
		if errors.Is(err, ErrScheduleLocked) || errors.Is(err, domain.ErrInvalidEvent) {
			return nil, err
		}
		return nil, fmt.Errorf("update event %s: %w", id, err)
	}
	return updated, nil
}

// checkInventoryFits rejects a schedule that would strand the event's ticket
// types: an early-bird window ending after the new registration deadline, or
// more stock than the new capacity.
func checkInventoryFits(event *domain.Event, ticketTypes []*domain.TicketType) error {
	stock := 0
	for _, tt := range ticketTypes {
		if tt.EarlyBirdDeadline != nil && tt.EarlyBirdDeadline.After(event.RegistrationDeadline) {
			return fmt.Errorf("%w: registration deadline precedes the early-bird deadline of ticket type %q",
				domain.ErrInvalidEvent, tt.Name)
		}
		stock += tt.QuantityAvailable
	}
	if stock > event.Capacity {
		return fmt.Errorf("%w: capacity %d is below the %d tickets on offer", domain.ErrInvalidEvent, event.Capacity, stock)
	}
	return nil
}

// PublishEvent opens a draft event for registration
func (s *eventService) PublishEvent(ctx context.Context, id string) (*domain.Event, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.EventStatusDraft {
		return nil, ErrEventNotDraft
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	event.Status = domain.EventStatusPublished
	event.PublishedAt = &now
	event.UpdatedAt = now

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("publish event %s: %w", id, err)
	}
	return event, nil
}
