package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of every repository.
// A single mutex serializes writes, which gives CommitPurchase the same
// all-or-nothing conditional decrement as the PostgreSQL implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	events        map[string]*domain.Event
	ticketTypes   map[string]*domain.TicketType
	registrations map[string]*domain.Registration
	transitions   map[string][]*domain.StatusTransition
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:        make(map[string]*domain.Event),
		ticketTypes:   make(map[string]*domain.TicketType),
		registrations: make(map[string]*domain.Registration),
		transitions:   make(map[string][]*domain.StatusTransition),
	}
}

// Events returns the store as an EventRepository
func (s *MemoryStore) Events() EventRepository { return memoryEvents{s} }

// TicketTypes returns the store as a TicketTypeRepository
func (s *MemoryStore) TicketTypes() TicketTypeRepository { return memoryTicketTypes{s} }

// Registrations returns the store as a RegistrationRepository
func (s *MemoryStore) Registrations() RegistrationRepository { return memoryRegistrations{s} }

func copyEvent(e *domain.Event) *domain.Event {
	c := *e
	return &c
}

func copyTicketType(tt *domain.TicketType) *domain.TicketType {
	c := *tt
	c.Benefits = append([]string{}, tt.Benefits...)
	return &c
}

func copyRegistration(r *domain.Registration) *domain.Registration {
	c := *r
	c.Attendees = append([]domain.Attendee{}, r.Attendees...)
	return &c
}

// --- events ---

type memoryEvents struct{ s *MemoryStore }

func (m memoryEvents) Create(ctx context.Context, event *domain.Event) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.events[event.ID]; exists {
		return fmt.Errorf("event %s already exists", event.ID)
	}
	m.s.events[event.ID] = copyEvent(event)
	return nil
}

func (m memoryEvents) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	e, ok := m.s.events[id]
	if !ok {
		return nil, nil
	}
	return copyEvent(e), nil
}

func (m memoryEvents) List(ctx context.Context, filter EventFilter) ([]*domain.Event, int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var all []*domain.Event
	for _, e := range m.s.events {
		if filter.Status == "" || e.Status == filter.Status {
			all = append(all, copyEvent(e))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartAt.Before(all[j].StartAt) })
	return paginate(all, filter.Limit, filter.Offset), len(all), nil
}

func (m memoryEvents) Update(ctx context.Context, event *domain.Event) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.events[event.ID]; !ok {
		return fmt.Errorf("event %s not found", event.ID)
	}
	m.s.events[event.ID] = copyEvent(event)
	return nil
}

func (m memoryEvents) CountTicketsSold(ctx context.Context, eventID string) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.s.soldLocked(eventID), nil
}

func (m memoryEvents) UpdateChecked(ctx context.Context, event *domain.Event, check EventUpdateCheck) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.events[event.ID]; !ok {
		return fmt.Errorf("event %s not found", event.ID)
	}

	var types []*domain.TicketType
	for _, tt := range m.s.ticketTypes {
		if tt.EventID == event.ID {
			types = append(types, copyTicketType(tt))
		}
	}
	if err := check(types, m.s.soldLocked(event.ID)); err != nil {
		return err
	}
	m.s.events[event.ID] = copyEvent(event)
	return nil
}

func (s *MemoryStore) soldLocked(eventID string) int {
	sold := 0
	for _, r := range s.registrations {
		if r.EventID == eventID && !r.PaymentStatus.ReleasesInventory() {
			sold += r.Quantity
		}
	}
	return sold
}

// --- ticket types ---

type memoryTicketTypes struct{ s *MemoryStore }

func (m memoryTicketTypes) Create(ctx context.Context, tt *domain.TicketType) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.ticketTypes[tt.ID]; exists {
		return fmt.Errorf("ticket type %s already exists", tt.ID)
	}
	m.s.ticketTypes[tt.ID] = copyTicketType(tt)
	return nil
}

func (m memoryTicketTypes) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	tt, ok := m.s.ticketTypes[id]
	if !ok {
		return nil, nil
	}
	return copyTicketType(tt), nil
}

func (m memoryTicketTypes) ListByEvent(ctx context.Context, eventID string) ([]*domain.TicketType, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var types []*domain.TicketType
	for _, tt := range m.s.ticketTypes {
		if tt.EventID == eventID {
			types = append(types, copyTicketType(tt))
		}
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].BasePrice.Equal(types[j].BasePrice) {
			return types[i].Name < types[j].Name
		}
		return types[i].BasePrice.LessThan(types[j].BasePrice)
	})
	return types, nil
}

// --- registrations ---

type memoryRegistrations struct{ s *MemoryStore }

func (m memoryRegistrations) CommitPurchase(ctx context.Context, ticketTypeID string, quantity int, reg *domain.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	tt, ok := m.s.ticketTypes[ticketTypeID]
	if !ok || tt.QuantityAvailable < quantity {
		return domain.ErrInsufficientInventory
	}
	if _, exists := m.s.registrations[reg.ID]; exists {
		return fmt.Errorf("registration %s already exists", reg.ID)
	}

	tt.QuantityAvailable -= quantity
	tt.UpdatedAt = time.Now()
	m.s.registrations[reg.ID] = copyRegistration(reg)
	return nil
}

func (m memoryRegistrations) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	r, ok := m.s.registrations[id]
	if !ok {
		return nil, nil
	}
	return copyRegistration(r), nil
}

func (m memoryRegistrations) GetByPaymentReference(ctx context.Context, reference string) (*domain.Registration, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, r := range m.s.registrations {
		if reference != "" && r.PaymentReference == reference {
			return copyRegistration(r), nil
		}
	}
	return nil, nil
}

func (m memoryRegistrations) filter(match func(*domain.Registration) bool) []*domain.Registration {
	var out []*domain.Registration
	for _, r := range m.s.registrations {
		if match(r) {
			out = append(out, copyRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m memoryRegistrations) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]*domain.Registration, int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	all := m.filter(func(r *domain.Registration) bool { return r.BuyerID == buyerID })
	return paginate(all, limit, offset), len(all), nil
}

func (m memoryRegistrations) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*domain.Registration, int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	all := m.filter(func(r *domain.Registration) bool { return r.EventID == eventID })
	return paginate(all, limit, offset), len(all), nil
}

func (m memoryRegistrations) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	all := m.filter(func(r *domain.Registration) bool {
		return r.PaymentStatus == domain.PaymentStatusPending && r.CreatedAt.Before(cutoff)
	})
	// oldest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return paginate(all, limit, 0), nil
}

func (m memoryRegistrations) SetPaymentReference(ctx context.Context, id, reference string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.registrations[id]
	if !ok || r.PaymentStatus != domain.PaymentStatusPending {
		return domain.ErrStatusConflict
	}
	r.PaymentReference = reference
	r.UpdatedAt = time.Now()
	return nil
}

func (m memoryRegistrations) ApplyTransition(ctx context.Context, t *domain.StatusTransition) (*domain.Registration, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	r, ok := m.s.registrations[t.RegistrationID]
	if !ok || r.PaymentStatus != t.FromStatus {
		return nil, domain.ErrStatusConflict
	}

	r.PaymentStatus = t.ToStatus
	r.UpdatedAt = t.CreatedAt
	switch t.ToStatus {
	case domain.PaymentStatusCompleted:
		at := t.CreatedAt
		r.CompletedAt = &at
	case domain.PaymentStatusCancelled:
		at := t.CreatedAt
		r.CancelledAt = &at
	}

	if t.ToStatus.ReleasesInventory() {
		if tt, ok := m.s.ticketTypes[r.TicketTypeID]; ok {
			tt.QuantityAvailable += r.Quantity
			tt.UpdatedAt = t.CreatedAt
		}
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	recorded := *t
	m.s.transitions[t.RegistrationID] = append(m.s.transitions[t.RegistrationID], &recorded)

	return copyRegistration(r), nil
}

func (m memoryRegistrations) ListTransitions(ctx context.Context, registrationID string) ([]*domain.StatusTransition, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	src := m.s.transitions[registrationID]
	out := make([]*domain.StatusTransition, len(src))
	for i, t := range src {
		c := *t
		out[i] = &c
	}
	return out, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
