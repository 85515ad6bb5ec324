package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const registrationColumns = `id, event_id, ticket_type_id, buyer_id, quantity, total_amount, currency,
	payment_status, COALESCE(payment_reference, ''), created_at, updated_at, completed_at, cancelled_at`

// PostgresRegistrationRepository implements RegistrationRepository using PostgreSQL
type PostgresRegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistrationRepository creates a new PostgresRegistrationRepository
func NewPostgresRegistrationRepository(pool *pgxpool.Pool) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{pool: pool}
}

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	reg := &domain.Registration{}
	err := row.Scan(
		&reg.ID,
		&reg.EventID,
		&reg.TicketTypeID,
		&reg.BuyerID,
		&reg.Quantity,
		&reg.TotalAmount,
		&reg.Currency,
		&reg.PaymentStatus,
		&reg.PaymentReference,
		&reg.CreatedAt,
		&reg.UpdatedAt,
		&reg.CompletedAt,
		&reg.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// CommitPurchase runs the conditional decrement and the registration inserts in one transaction
func (r *PostgresRegistrationRepository) CommitPurchase(ctx context.Context, ticketTypeID string, quantity int, reg *domain.Registration) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE ticket_types
			SET quantity_available = quantity_available - $2, updated_at = NOW()
			WHERE id = $1 AND quantity_available >= $2
		`, ticketTypeID, quantity)
		if err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}
		if result.RowsAffected() == 0 {
			return domain.ErrInsufficientInventory
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO registrations (id, event_id, ticket_type_id, buyer_id, quantity, total_amount,
				currency, payment_status, payment_reference, created_at, updated_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
		`,
			reg.ID,
			reg.EventID,
			ticketTypeID,
			reg.BuyerID,
			quantity,
			reg.TotalAmount,
			reg.Currency,
			reg.PaymentStatus,
			reg.PaymentReference,
			reg.CreatedAt,
			reg.UpdatedAt,
			reg.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}

		return insertAttendees(ctx, tx, reg)
	})
}

func insertAttendees(ctx context.Context, tx pgx.Tx, reg *domain.Registration) error {
	batch := &pgx.Batch{}
	for i, a := range reg.Attendees {
		batch.Queue(`
			INSERT INTO registration_attendees (registration_id, position, name, email)
			VALUES ($1, $2, $3, $4)
		`, reg.ID, i+1, a.Name, a.Email)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert attendees: %w", err)
	}
	return nil
}

func (r *PostgresRegistrationRepository) loadAttendees(ctx context.Context, regs ...*domain.Registration) error {
	if len(regs) == 0 {
		return nil
	}
	ids := make([]string, len(regs))
	byID := make(map[string]*domain.Registration, len(regs))
	for i, reg := range regs {
		ids[i] = reg.ID
		byID[reg.ID] = reg
		reg.Attendees = []domain.Attendee{}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT registration_id, name, email
		FROM registration_attendees
		WHERE registration_id = ANY($1::uuid[])
		ORDER BY registration_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var regID string
		var a domain.Attendee
		if err := rows.Scan(&regID, &a.Name, &a.Email); err != nil {
			return err
		}
		if reg, ok := byID[regID]; ok {
			reg.Attendees = append(reg.Attendees, a)
		}
	}
	return rows.Err()
}

func (r *PostgresRegistrationRepository) getOne(ctx context.Context, where string, arg any) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE ` + where
	reg, err := scanRegistration(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadAttendees(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// GetByID retrieves a registration by ID
func (r *PostgresRegistrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByPaymentReference retrieves a registration by its payment reference
func (r *PostgresRegistrationRepository) GetByPaymentReference(ctx context.Context, reference string) (*domain.Registration, error) {
	return r.getOne(ctx, "payment_reference = $1", reference)
}

func (r *PostgresRegistrationRepository) list(ctx context.Context, column, value string, limit, offset int) ([]*domain.Registration, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM registrations WHERE ` + column + ` = $1`
	if err := r.pool.QueryRow(ctx, countQuery, value).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE ` + column + ` = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	regs, err := r.query(ctx, query, value, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return regs, total, nil
}

func (r *PostgresRegistrationRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Registration, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		regs = append(regs, reg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadAttendees(ctx, regs...); err != nil {
		return nil, err
	}
	return regs, nil
}

// ListByBuyer lists a buyer's registrations
func (r *PostgresRegistrationRepository) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]*domain.Registration, int, error) {
	return r.list(ctx, "buyer_id", buyerID, limit, offset)
}

// ListByEvent lists an event's registrations
func (r *PostgresRegistrationRepository) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*domain.Registration, int, error) {
	return r.list(ctx, "event_id", eventID, limit, offset)
}

// ListPendingBefore lists stale pending registrations, oldest first
func (r *PostgresRegistrationRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE payment_status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	return r.query(ctx, query, cutoff, limit)
}

// SetPaymentReference stores the payment reference of a pending registration
func (r *PostgresRegistrationRepository) SetPaymentReference(ctx context.Context, id, reference string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE registrations
		SET payment_reference = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'
	`, id, reference)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

// ApplyTransition changes the payment status with a conditional update
func (r *PostgresRegistrationRepository) ApplyTransition(ctx context.Context, t *domain.StatusTransition) (*domain.Registration, error) {
	var reg *domain.Registration
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE registrations
			SET payment_status = $3,
				updated_at = $4,
				completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END,
				cancelled_at = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END
			WHERE id = $1 AND payment_status = $2
			RETURNING `+registrationColumns,
			t.RegistrationID, t.FromStatus, t.ToStatus, t.CreatedAt,
		)
		var err error
		reg, err = scanRegistration(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrStatusConflict
		}
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		if t.ToStatus.ReleasesInventory() {
			_, err = tx.Exec(ctx, `
				UPDATE ticket_types
				SET quantity_available = quantity_available + $2, updated_at = NOW()
				WHERE id = $1
			`, reg.TicketTypeID, reg.Quantity)
			if err != nil {
				return fmt.Errorf("release inventory: %w", err)
			}
		}

		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO registration_status_history (id, registration_id, from_status, to_status, reason, actor, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.ID, t.RegistrationID, t.FromStatus, t.ToStatus, t.Reason, t.Actor, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("record transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.loadAttendees(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// ListTransitions lists the status history of a registration
func (r *PostgresRegistrationRepository) ListTransitions(ctx context.Context, registrationID string) ([]*domain.StatusTransition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, registration_id, from_status, to_status, reason, actor, created_at
		FROM registration_status_history
		WHERE registration_id = $1
		ORDER BY created_at ASC
	`, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transitions []*domain.StatusTransition
	for rows.Next() {
		t := &domain.StatusTransition{}
		if err := rows.Scan(&t.ID, &t.RegistrationID, &t.FromStatus, &t.ToStatus, &t.Reason, &t.Actor, &t.CreatedAt); err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}
