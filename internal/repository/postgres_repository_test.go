package repository

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/migrations"
	"github.com/fashionistas/ticketing/pkg/database"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pgRepos struct {
	events        *PostgresEventRepository
	ticketTypes   *PostgresTicketTypeRepository
	registrations *PostgresRegistrationRepository
}

// setupPostgres connects to TEST_POSTGRES_* and applies the migrations
func setupPostgres(t *testing.T) *pgRepos {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := database.DefaultPostgresConfig()
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("TEST_POSTGRES_PORT")); err == nil {
		cfg.Port = port
	}
	if user := os.Getenv("TEST_POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("TEST_POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("TEST_POSTGRES_DATABASE"); dbname != "" {
		cfg.Database = dbname
	}

	ctx := context.Background()
	sqlDB, err := sql.Open("pgx", cfg.DSN())
	require.NoError(t, err)
	require.NoError(t, migrations.Up(ctx, sqlDB))
	require.NoError(t, sqlDB.Close())

	db, err := database.NewPostgres(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return &pgRepos{
		events:        NewPostgresEventRepository(db.Pool()),
		ticketTypes:   NewPostgresTicketTypeRepository(db.Pool()),
		registrations: NewPostgresRegistrationRepository(db.Pool()),
	}
}

func seedPostgres(t *testing.T, r *pgRepos, quantity int) *domain.TicketType {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	event := &domain.Event{
		ID:                   uuid.New().String(),
		Title:                "Integration Runway",
		Venue:                "Hall B",
		Capacity:             quantity,
		StartAt:              now.Add(72 * time.Hour),
		EndAt:                now.Add(75 * time.Hour),
		RegistrationDeadline: now.Add(48 * time.Hour),
		Status:               domain.EventStatusPublished,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, r.events.Create(ctx, event))

	tt := &domain.TicketType{
		ID:                uuid.New().String(),
		EventID:           event.ID,
		Name:              "General",
		BasePrice:         decimal.RequireFromString("25.00"),
		QuantityAvailable: quantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, r.ticketTypes.Create(ctx, tt))
	return tt
}

func pgRegistration(tt *domain.TicketType, buyerID string, qty int) *domain.Registration {
	now := time.Now().UTC().Truncate(time.Microsecond)
	attendees := make([]domain.Attendee, qty)
	for i := range attendees {
		attendees[i] = domain.Attendee{Name: "Guest", Email: "guest@fashionistas.example"}
	}
	return &domain.Registration{
		ID:            uuid.New().String(),
		EventID:       tt.EventID,
		TicketTypeID:  tt.ID,
		BuyerID:       buyerID,
		Quantity:      qty,
		TotalAmount:   tt.BasePrice.Mul(decimal.NewFromInt(int64(qty))),
		Currency:      "usd",
		PaymentStatus: domain.PaymentStatusPending,
		Attendees:     attendees,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPostgresRegistrationRepository_CommitPurchase(t *testing.T) {
	r := setupPostgres(t)
	ctx := context.Background()
	tt := seedPostgres(t, r, 3)

	reg := pgRegistration(tt, "buyer-1", 2)
	require.NoError(t, r.registrations.CommitPurchase(ctx, tt.ID, 2, reg))

	stored, err := r.registrations.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Attendees, 2)
	assert.True(t, reg.TotalAmount.Equal(stored.TotalAmount))

	remaining, err := r.ticketTypes.GetByID(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining.QuantityAvailable)

	// nothing is written when stock is short
	short := pgRegistration(tt, "buyer-2", 2)
	assert.ErrorIs(t, r.registrations.CommitPurchase(ctx, tt.ID, 2, short), domain.ErrInsufficientInventory)
	missing, err := r.registrations.GetByID(ctx, short.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostgresRegistrationRepository_ConcurrentCommitsNeverOversell(t *testing.T) {
	r := setupPostgres(t)
	ctx := context.Background()
	tt := seedPostgres(t, r, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.registrations.CommitPurchase(ctx, tt.ID, 1, pgRegistration(tt, "buyer-"+strconv.Itoa(i), 1))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	remaining, err := r.ticketTypes.GetByID(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining.QuantityAvailable)
}

func TestPostgresRegistrationRepository_ApplyTransition(t *testing.T) {
	r := setupPostgres(t)
	ctx := context.Background()
	tt := seedPostgres(t, r, 5)

	reg := pgRegistration(tt, "buyer-1", 2)
	require.NoError(t, r.registrations.CommitPurchase(ctx, tt.ID, 2, reg))

	failed, err := domain.NewStatusTransition(reg, domain.PaymentStatusFailed, "card declined", "payment", time.Now().UTC())
	require.NoError(t, err)
	updated, err := r.registrations.ApplyTransition(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, updated.PaymentStatus)

	remaining, err := r.ticketTypes.GetByID(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining.QuantityAvailable)

	// a second writer holding the stale status loses
	completed, err := domain.NewStatusTransition(reg, domain.PaymentStatusCompleted, "", "payment", time.Now().UTC())
	require.NoError(t, err)
	_, err = r.registrations.ApplyTransition(ctx, completed)
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	history, err := r.registrations.ListTransitions(ctx, reg.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "card declined", history[0].Reason)

	sold, err := r.events.CountTicketsSold(ctx, tt.EventID)
	require.NoError(t, err)
	assert.Zero(t, sold)
}

func TestPostgresRegistrationRepository_ListPendingBefore(t *testing.T) {
	r := setupPostgres(t)
	ctx := context.Background()
	tt := seedPostgres(t, r, 5)

	old := pgRegistration(tt, "buyer-old", 1)
	old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	fresh := pgRegistration(tt, "buyer-fresh", 1)
	require.NoError(t, r.registrations.CommitPurchase(ctx, tt.ID, 1, old))
	require.NoError(t, r.registrations.CommitPurchase(ctx, tt.ID, 1, fresh))

	pending, err := r.registrations.ListPendingBefore(ctx, time.Now().UTC().Add(-time.Hour), 100)
	require.NoError(t, err)

	var ids []string
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, old.ID)
	assert.NotContains(t, ids, fresh.ID)
}

func TestPostgresEventRepository_UpdateChecked(t *testing.T) {
	r := setupPostgres(t)
	ctx := context.Background()
	tt := seedPostgres(t, r, 5)
	require.NoError(t, r.registrations.CommitPurchase(ctx, tt.ID, 2, pgRegistration(tt, "buyer-1", 2)))

	event, err := r.events.GetByID(ctx, tt.EventID)
	require.NoError(t, err)
	event.Capacity = 50

	err = r.events.UpdateChecked(ctx, event, func(types []*domain.TicketType, sold int) error {
		require.Len(t, types, 1)
		assert.Equal(t, 3, types[0].QuantityAvailable)
		assert.Equal(t, 2, sold)
		return domain.ErrInvalidEvent
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	stored, err := r.events.GetByID(ctx, tt.EventID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Capacity)

	require.NoError(t, r.events.UpdateChecked(ctx, event, func([]*domain.TicketType, int) error { return nil }))
	stored, err = r.events.GetByID(ctx, tt.EventID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Capacity)
}
