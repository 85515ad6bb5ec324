package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/events"
	"github.com/fashionistas/ticketing/internal/pricing"
	"github.com/fashionistas/ticketing/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// racingRegistrations lets a competing buyer change stock around the
// first commit that reaches the store
type racingRegistrations struct {
	repository.RegistrationRepository
	mu      sync.Mutex
	before  func(ctx context.Context)
	after   func(ctx context.Context)
	commits int
}

func (r *racingRegistrations) CommitPurchase(ctx context.Context, ticketTypeID string, quantity int, reg *domain.Registration) error {
	r.mu.Lock()
	before, after := r.before, r.after
	r.before, r.after = nil, nil
	r.commits++
	r.mu.Unlock()

	if before != nil {
		before(ctx)
	}
	err := r.RegistrationRepository.CommitPurchase(ctx, ticketTypeID, quantity, reg)
	if after != nil {
		after(ctx)
	}
	return err
}

func competitor(t *testing.T, f *fixture, qty int) func(ctx context.Context) {
	return func(ctx context.Context) {
		reg := &domain.Registration{
			ID:            "competitor",
			EventID:       f.event.ID,
			TicketTypeID:  f.tt.ID,
			BuyerID:       "buyer-fast",
			Quantity:      qty,
			TotalAmount:   decimal.NewFromInt(int64(150 * qty)),
			Currency:      "usd",
			PaymentStatus: domain.PaymentStatusPending,
			Attendees:     attendees(qty),
			CreatedAt:     testNow,
			UpdatedAt:     testNow,
		}
		require.NoError(t, f.store.Registrations().CommitPurchase(ctx, f.tt.ID, qty, reg))
	}
}

// releaseCompetitor fails the competitor's registration, returning its tickets
func releaseCompetitor(t *testing.T, f *fixture) func(ctx context.Context) {
	return func(ctx context.Context) {
		regs := f.store.Registrations()
		reg, err := regs.GetByID(ctx, "competitor")
		require.NoError(t, err)
		tr, err := domain.NewStatusTransition(reg, domain.PaymentStatusFailed, "card declined", ActorPayment, testNow)
		require.NoError(t, err)
		_, err = regs.ApplyTransition(ctx, tr)
		require.NoError(t, err)
	}
}

func newTestPurchaseService(f *fixture, regs repository.RegistrationRepository, cfg PurchaseConfig) *purchaseService {
	deps := f.deps()
	if regs != nil {
		deps.Registrations = regs
	}
	svc := NewPurchaseService(f.store.TicketTypes(), f.store.Events(), deps, cfg).(*purchaseService)
	svc.now = fixedClock
	return svc
}

func TestPurchase_Success(t *testing.T) {
	f := newFixture(t, 10)
	svc := newTestPurchaseService(f, nil, PurchaseConfig{Currency: "usd", ConflictRetries: 1})

	result, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: f.tt.ID,
		BuyerID:      "buyer-1",
		Quantity:     2,
		Attendees:    attendees(2),
	})
	require.NoError(t, err)

	reg := result.Registration
	assert.NotEmpty(t, reg.ID)
	assert.Equal(t, f.event.ID, reg.EventID)
	assert.Equal(t, f.tt.ID, reg.TicketTypeID)
	assert.Equal(t, domain.PaymentStatusPending, reg.PaymentStatus)
	assert.Equal(t, "300.00", reg.TotalAmount.StringFixed(2))
	assert.Equal(t, "usd", reg.Currency)
	assert.Equal(t, pricing.TierStandard, result.Quote.Tier)

	assert.Equal(t, 8, f.stock(t))
	assert.Equal(t, []string{f.tt.ID}, f.cache.invalidated)
	assert.Equal(t, []string{events.TopicRegistrationCreated}, f.publisher.Topics())

	stored, err := f.store.Registrations().GetByID(context.Background(), reg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Attendees, 2)
}

func TestPurchase_EarlyBirdAndGroupDiscount(t *testing.T) {
	f := newFixture(t, 0)
	earlyPrice := decimal.RequireFromString("100.00")
	earlyDeadline := testNow.Add(24 * time.Hour)
	threshold := 4
	pct := decimal.RequireFromString("10")
	tt := vipTicketType(f.event.ID, 20)
	tt.ID = "44444444-4444-4444-4444-444444444444"
	tt.EarlyBirdPrice = &earlyPrice
	tt.EarlyBirdDeadline = &earlyDeadline
	tt.GroupDiscountThreshold = &threshold
	tt.GroupDiscountPercentage = &pct
	require.NoError(t, f.store.TicketTypes().Create(context.Background(), tt))

	svc := newTestPurchaseService(f, nil, PurchaseConfig{})
	result, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: tt.ID,
		BuyerID:      "buyer-1",
		Quantity:     4,
		Attendees:    attendees(4),
	})
	require.NoError(t, err)

	assert.Equal(t, pricing.TierEarlyBird, result.Quote.Tier)
	assert.Equal(t, "360.00", result.Registration.TotalAmount.StringFixed(2))
}

func TestPurchase_FreeRegistrationCompletes(t *testing.T) {
	f := newFixture(t, 0)
	free := vipTicketType(f.event.ID, 5)
	free.ID = "33333333-3333-3333-3333-333333333333"
	free.Name = "Press"
	free.BasePrice = decimal.Zero
	require.NoError(t, f.store.TicketTypes().Create(context.Background(), free))

	svc := newTestPurchaseService(f, nil, PurchaseConfig{})
	result, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: free.ID,
		BuyerID:      "press-1",
		Quantity:     1,
		Attendees:    attendees(1),
	})
	require.NoError(t, err)

	reg := result.Registration
	assert.Equal(t, domain.PaymentStatusCompleted, reg.PaymentStatus)
	require.NotNil(t, reg.CompletedAt)
	assert.True(t, reg.TotalAmount.IsZero())
	assert.Equal(t, []string{events.TopicRegistrationCreated, events.TopicRegistrationCompleted}, f.publisher.Topics())

	history, err := f.store.Registrations().ListTransitions(context.Background(), reg.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ActorSystem, history[0].Actor)
}

func TestPurchase_RegistrationClosed(t *testing.T) {
	t.Run("draft event", func(t *testing.T) {
		f := newFixture(t, 10)
		draft := publishedEvent()
		draft.Status = domain.EventStatusDraft
		draft.PublishedAt = nil
		require.NoError(t, f.store.Events().Update(context.Background(), draft))

		svc := newTestPurchaseService(f, nil, PurchaseConfig{})
		_, err := svc.Purchase(context.Background(), &PurchaseInput{
			TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 1, Attendees: attendees(1),
		})
		assert.ErrorIs(t, err, ErrRegistrationClosed)
		assert.Equal(t, 10, f.stock(t))
	})

	t.Run("deadline passed", func(t *testing.T) {
		f := newFixture(t, 10)
		svc := newTestPurchaseService(f, nil, PurchaseConfig{})
		svc.now = func() time.Time { return f.event.RegistrationDeadline.Add(time.Second) }

		_, err := svc.Purchase(context.Background(), &PurchaseInput{
			TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 1, Attendees: attendees(1),
		})
		assert.ErrorIs(t, err, ErrRegistrationClosed)
		assert.Empty(t, f.publisher.Topics())
	})

	t.Run("deadline instant is still open", func(t *testing.T) {
		f := newFixture(t, 10)
		svc := newTestPurchaseService(f, nil, PurchaseConfig{})
		svc.now = func() time.Time { return f.event.RegistrationDeadline }

		_, err := svc.Purchase(context.Background(), &PurchaseInput{
			TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 1, Attendees: attendees(1),
		})
		assert.NoError(t, err)
	})
}

func TestPurchase_InsufficientTickets(t *testing.T) {
	f := newFixture(t, 3)
	svc := newTestPurchaseService(f, nil, PurchaseConfig{})

	_, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 4, Attendees: attendees(4),
	})
	assert.ErrorIs(t, err, ErrInsufficientTickets)
	assert.Equal(t, 3, f.stock(t))
	assert.Empty(t, f.publisher.Topics())
}

func TestPurchase_NotFound(t *testing.T) {
	f := newFixture(t, 3)
	svc := newTestPurchaseService(f, nil, PurchaseConfig{})

	_, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: "missing", BuyerID: "buyer-1", Quantity: 1, Attendees: attendees(1),
	})
	assert.ErrorIs(t, err, ErrTicketTypeNotFound)
}

func TestPurchase_InvalidAttendees(t *testing.T) {
	f := newFixture(t, 5)
	svc := newTestPurchaseService(f, nil, PurchaseConfig{})

	_, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 2, Attendees: attendees(1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRegistration)
	assert.Equal(t, 5, f.stock(t))
}

func TestPurchase_MissingBuyer(t *testing.T) {
	f := newFixture(t, 5)
	svc := newTestPurchaseService(f, nil, PurchaseConfig{})

	_, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: f.tt.ID, Quantity: 1, Attendees: attendees(1),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPurchase_LostRaceRetriesAndSucceeds(t *testing.T) {
	f := newFixture(t, 3)
	regs := &racingRegistrations{RegistrationRepository: f.store.Registrations()}
	// the competitor empties the stock before our commit, then releases it
	regs.before = competitor(t, f, 3)
	regs.after = releaseCompetitor(t, f)
	svc := newTestPurchaseService(f, regs, PurchaseConfig{ConflictRetries: 1})

	result, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 1, Attendees: attendees(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Registration.Quantity)
	assert.Equal(t, 2, f.stock(t))
	assert.Equal(t, 2, regs.commits)
}

func TestPurchase_LostRaceRetryStillShort(t *testing.T) {
	f := newFixture(t, 3)
	regs := &racingRegistrations{RegistrationRepository: f.store.Registrations()}
	regs.before = competitor(t, f, 2)
	svc := newTestPurchaseService(f, regs, PurchaseConfig{ConflictRetries: 3})

	_, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 2, Attendees: attendees(2),
	})
	assert.ErrorIs(t, err, ErrInsufficientTickets)
	assert.Equal(t, 1, f.stock(t))
	// the retry is rejected by validation before reaching the store
	assert.Equal(t, 1, regs.commits)
}

func TestPurchase_LostRaceWithoutRetries(t *testing.T) {
	f := newFixture(t, 3)
	regs := &racingRegistrations{RegistrationRepository: f.store.Registrations()}
	regs.before = competitor(t, f, 3)
	regs.after = releaseCompetitor(t, f)
	svc := newTestPurchaseService(f, regs, PurchaseConfig{ConflictRetries: 0})

	_, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 1, Attendees: attendees(1),
	})
	assert.ErrorIs(t, err, ErrInsufficientTickets)
	assert.Equal(t, 3, f.stock(t))
	assert.Equal(t, 1, regs.commits)
}

func TestPurchase_PublishFailureDoesNotFailPurchase(t *testing.T) {
	f := newFixture(t, 5)
	f.publisher = new(MockPublisher)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	svc := newTestPurchaseService(f, nil, PurchaseConfig{})

	result, err := svc.Purchase(context.Background(), &PurchaseInput{
		TicketTypeID: f.tt.ID, BuyerID: "buyer-1", Quantity: 1, Attendees: attendees(1),
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Registration)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPurchase_ConcurrentBuyersNeverOversell(t *testing.T) {
	const (
		stock  = 10
		buyers = 40
	)
	f := newFixture(t, stock)
	svc := newTestPurchaseService(f, nil, PurchaseConfig{ConflictRetries: 2})

	var (
		wg       sync.WaitGroup
		sold     atomic.Int32
		rejected atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Purchase(context.Background(), &PurchaseInput{
				TicketTypeID: f.tt.ID, BuyerID: "buyer", Quantity: 1, Attendees: attendees(1),
			})
			switch {
			case err == nil:
				sold.Add(1)
			case errors.Is(err, ErrInsufficientTickets):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(stock), sold.Load())
	assert.Equal(t, int32(buyers-stock), rejected.Load())
	assert.Equal(t, 0, f.stock(t))

	_, total, err := f.store.Registrations().ListByEvent(context.Background(), f.event.ID, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, stock, total)
}

func TestPurchaseService_Validate(t *testing.T) {
	f := newFixture(t, 3)
	svc := newTestPurchaseService(f, nil, PurchaseConfig{})
	ctx := context.Background()

	result, err := svc.Validate(ctx, f.tt.ID, "buyer-1", 2)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, "300.00", result.TotalAmount.StringFixed(2))

	result, err = svc.Validate(ctx, f.tt.ID, "buyer-1", 4)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, pricing.ReasonInsufficientTickets, result.Reason)
	assert.True(t, result.TotalAmount.IsZero())

	// validation never touches stock
	assert.Equal(t, 3, f.stock(t))

	svc.now = func() time.Time { return f.event.RegistrationDeadline.Add(time.Minute) }
	_, err = svc.Validate(ctx, f.tt.ID, "buyer-1", 1)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestPurchaseOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "committed"},
		{ErrInsufficientTickets, "insufficient_stock"},
		{ErrRegistrationClosed, "registration_closed"},
		{domain.ErrValidation, "invalid"},
		{ErrTicketTypeNotFound, "invalid"},
		{errors.New("connection reset"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, purchaseOutcome(tt.err))
	}
}
