package repository

import (
	"context"
	"errors"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const ticketTypeColumns = `id, event_id, name, description, base_price, quantity_available, benefits,
	early_bird_price, early_bird_deadline, group_discount_threshold, group_discount_percentage,
	created_at, updated_at`

// PostgresTicketTypeRepository implements TicketTypeRepository using PostgreSQL
type PostgresTicketTypeRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketTypeRepository creates a new PostgresTicketTypeRepository
func NewPostgresTicketTypeRepository(pool *pgxpool.Pool) *PostgresTicketTypeRepository {
	return &PostgresTicketTypeRepository{pool: pool}
}

func scanTicketType(row pgx.Row) (*domain.TicketType, error) {
	tt := &domain.TicketType{}
	var earlyBird, discountPct decimal.NullDecimal
	err := row.Scan(
		&tt.ID,
		&tt.EventID,
		&tt.Name,
		&tt.Description,
		&tt.BasePrice,
		&tt.QuantityAvailable,
		&tt.Benefits,
		&earlyBird,
		&tt.EarlyBirdDeadline,
		&tt.GroupDiscountThreshold,
		&discountPct,
		&tt.CreatedAt,
		&tt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if earlyBird.Valid {
		tt.EarlyBirdPrice = &earlyBird.Decimal
	}
	if discountPct.Valid {
		tt.GroupDiscountPercentage = &discountPct.Decimal
	}
	if tt.Benefits == nil {
		tt.Benefits = []string{}
	}
	return tt, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// Create creates a new ticket type
func (r *PostgresTicketTypeRepository) Create(ctx context.Context, tt *domain.TicketType) error {
	benefits := tt.Benefits
	if benefits == nil {
		benefits = []string{}
	}
	query := `
		INSERT INTO ticket_types (id, event_id, name, description, base_price, quantity_available, benefits,
			early_bird_price, early_bird_deadline, group_discount_threshold, group_discount_percentage,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		tt.ID,
		tt.EventID,
		tt.Name,
		tt.Description,
		tt.BasePrice,
		tt.QuantityAvailable,
		benefits,
		nullDecimal(tt.EarlyBirdPrice),
		tt.EarlyBirdDeadline,
		tt.GroupDiscountThreshold,
		nullDecimal(tt.GroupDiscountPercentage),
		tt.CreatedAt,
		tt.UpdatedAt,
	)
	return err
}

// GetByID retrieves a ticket type by ID
func (r *PostgresTicketTypeRepository) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE id = $1`
	tt, err := scanTicketType(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return tt, err
}

// ListByEvent lists ticket types of an event
func (r *PostgresTicketTypeRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types
		WHERE event_id = $1
		ORDER BY base_price ASC, name ASC`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*domain.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, tt)
	}
	return types, rows.Err()
}
