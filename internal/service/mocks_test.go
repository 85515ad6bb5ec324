package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/events"
	"github.com/fashionistas/ticketing/internal/payment"
	"github.com/fashionistas/ticketing/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event *events.RegistrationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Topics returns the topics published so far, in order
func (m *MockPublisher) Topics() []string {
	var topics []string
	for _, c := range m.Calls {
		if c.Method == "Publish" {
			topics = append(topics, c.Arguments.Get(1).(*events.RegistrationEvent).EventType)
		}
	}
	return topics
}

func newMockPublisher() *MockPublisher {
	p := new(MockPublisher)
	p.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	return p
}

// MockGateway is a mock implementation of payment.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateIntent(ctx context.Context, req *payment.IntentRequest) (*payment.Intent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, intentID, idempotencyKey string) error {
	args := m.Called(ctx, intentID, idempotencyKey)
	return args.Error(0)
}

func (m *MockGateway) ParseWebhook(payload []byte, signatureHeader string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, signatureHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookEvent), args.Error(1)
}

func (m *MockGateway) Name() string { return "mock" }

// recordingCache is an in-memory availability cache
type recordingCache struct {
	mu          sync.Mutex
	values      map[string]int
	invalidated []string
	getErr      error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{values: map[string]int{}}
}

func (c *recordingCache) Get(_ context.Context, id string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	v, ok := c.values[id]
	return v, ok, nil
}

func (c *recordingCache) Set(_ context.Context, id string, remaining int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[id] = remaining
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

// --- fixtures ---

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func publishedEvent() *domain.Event {
	published := testNow.Add(-24 * time.Hour)
	return &domain.Event{
		ID:                   "11111111-1111-1111-1111-111111111111",
		Title:                "Spring Runway",
		Venue:                "Grand Hall",
		Capacity:             500,
		StartAt:              time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC),
		EndAt:                time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC),
		RegistrationDeadline: time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC),
		Status:               domain.EventStatusPublished,
		PublishedAt:          &published,
		CreatedAt:            testNow.Add(-48 * time.Hour),
		UpdatedAt:            testNow.Add(-24 * time.Hour),
	}
}

func vipTicketType(eventID string, stock int) *domain.TicketType {
	return &domain.TicketType{
		ID:                "22222222-2222-2222-2222-222222222222",
		EventID:           eventID,
		Name:              "VIP",
		BasePrice:         decimal.RequireFromString("150.00"),
		QuantityAvailable: stock,
		Benefits:          []string{"front row"},
		CreatedAt:         testNow.Add(-48 * time.Hour),
		UpdatedAt:         testNow.Add(-48 * time.Hour),
	}
}

func attendees(n int) []domain.Attendee {
	out := make([]domain.Attendee, n)
	for i := range out {
		out[i] = domain.Attendee{Name: "Guest", Email: "guest@fashionistas.example"}
	}
	return out
}

type fixture struct {
	store     *repository.MemoryStore
	event     *domain.Event
	tt        *domain.TicketType
	publisher *MockPublisher
	cache     *recordingCache
}

func newFixture(t *testing.T, stock int) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	event := publishedEvent()
	tt := vipTicketType(event.ID, stock)
	ctx := context.Background()
	require.NoError(t, store.Events().Create(ctx, event))
	require.NoError(t, store.TicketTypes().Create(ctx, tt))
	return &fixture{
		store:     store,
		event:     event,
		tt:        tt,
		publisher: newMockPublisher(),
		cache:     newRecordingCache(),
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Registrations: f.store.Registrations(),
		Cache:         f.cache,
		Publisher:     f.publisher,
	}
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	tt, err := f.store.TicketTypes().GetByID(context.Background(), f.tt.ID)
	require.NoError(t, err)
	return tt.QuantityAvailable
}

// seedRegistration commits a registration directly through the store
func (f *fixture) seedRegistration(t *testing.T, buyerID string, qty int, total string, status domain.PaymentStatus, createdAt time.Time) *domain.Registration {
	reg := &domain.Registration{
		ID:            "reg-" + buyerID,
		EventID:       f.event.ID,
		TicketTypeID:  f.tt.ID,
		BuyerID:       buyerID,
		Quantity:      qty,
		TotalAmount:   decimal.RequireFromString(total),
		Currency:      "usd",
		PaymentStatus: domain.PaymentStatusPending,
		Attendees:     attendees(qty),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	ctx := context.Background()
	regs := f.store.Registrations()
	require.NoError(t, regs.CommitPurchase(ctx, f.tt.ID, qty, reg))
	if status != domain.PaymentStatusPending {
		tr, err := domain.NewStatusTransition(reg, status, "seed", "test", createdAt)
		require.NoError(t, err)
		reg, err = regs.ApplyTransition(ctx, tr)
		require.NoError(t, err)
	}
	return reg
}
