package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, description, venue, capacity, start_at, end_at,
	registration_deadline, status, published_at, created_at, updated_at`

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Venue,
		&e.Capacity,
		&e.StartAt,
		&e.EndAt,
		&e.RegistrationDeadline,
		&e.Status,
		&e.PublishedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create creates a new event
func (r *PostgresEventRepository) Create(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO events (id, title, description, venue, capacity, start_at, end_at,
			registration_deadline, status, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.Venue,
		event.Capacity,
		event.StartAt,
		event.EndAt,
		event.RegistrationDeadline,
		event.Status,
		event.PublishedAt,
		event.CreatedAt,
		event.UpdatedAt,
	)
	return err
}

// GetByID retrieves an event by ID
func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// List lists events, optionally filtered by status, ordered by start time
func (r *PostgresEventRepository) List(ctx context.Context, filter EventFilter) ([]*domain.Event, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM events WHERE ($1 = '' OR status = $1)`
	if err := r.pool.QueryRow(ctx, countQuery, filter.Status).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventColumns + ` FROM events
		WHERE ($1 = '' OR status = $1)
		ORDER BY start_at ASC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, filter.Status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

const updateEventQuery = `
	UPDATE events
	SET title = $2, description = $3, venue = $4, capacity = $5, start_at = $6, end_at = $7,
		registration_deadline = $8, status = $9, published_at = $10, updated_at = $11
	WHERE id = $1
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateEvent(ctx context.Context, db execer, event *domain.Event) error {
	result, err := db.Exec(ctx, updateEventQuery,
		event.ID,
		event.Title,
		event.Description,
		event.Venue,
		event.Capacity,
		event.StartAt,
		event.EndAt,
		event.RegistrationDeadline,
		event.Status,
		event.PublishedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Update updates an event
func (r *PostgresEventRepository) Update(ctx context.Context, event *domain.Event) error {
	return updateEvent(ctx, r.pool, event)
}

// UpdateChecked locks the event's ticket type rows, so CommitPurchase's
// conditional decrement waits until the update commits or rolls back
func (r *PostgresEventRepository) UpdateChecked(ctx context.Context, event *domain.Event, check EventUpdateCheck) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types
			WHERE event_id = $1
			ORDER BY id
			FOR UPDATE`, event.ID)
		if err != nil {
			return fmt.Errorf("lock ticket types: %w", err)
		}
		types, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.TicketType, error) {
			return scanTicketType(row)
		})
		if err != nil {
			return fmt.Errorf("lock ticket types: %w", err)
		}

		var sold int
		if err := tx.QueryRow(ctx, countSoldQuery, event.ID).Scan(&sold); err != nil {
			return fmt.Errorf("count tickets sold: %w", err)
		}
		if err := check(types, sold); err != nil {
			return err
		}
		return updateEvent(ctx, tx, event)
	})
}

const countSoldQuery = `
	SELECT COALESCE(SUM(quantity), 0)
	FROM registrations
	WHERE event_id = $1 AND payment_status IN ('pending', 'completed')
`

// CountTicketsSold sums quantities of pending and completed registrations
func (r *PostgresEventRepository) CountTicketsSold(ctx context.Context, eventID string) (int, error) {
	var sold int
	err := r.pool.QueryRow(ctx, countSoldQuery, eventID).Scan(&sold)
	return sold, err
}
