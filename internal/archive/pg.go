package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

const bookingsDDL = `
CREATE TABLE IF NOT EXISTS bookings (
	confirmation_code TEXT PRIMARY KEY,
	hold_id           TEXT NOT NULL,
	payment_id        TEXT NOT NULL,
	gateway_order_ref TEXT NOT NULL DEFAULT '',
	trip_id           TEXT NOT NULL,
	seat_ids          JSONB NOT NULL,
	passengers        JSONB NOT NULL,
	amount_charged    BIGINT NOT NULL,
	currency          TEXT NOT NULL,
	issued_at         TIMESTAMPTZ NOT NULL,
	UNIQUE (hold_id, payment_id)
);
`

// PG is the Postgres-backed archive.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a Postgres archive on an existing pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// EnsureSchema creates the bookings table when it does not exist yet.
func (p *PG) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, bookingsDDL); err != nil {
		return fmt.Errorf("failed to ensure bookings schema: %w", err)
	}
	return nil
}

// Save inserts the record. Replays of an already archived booking are
// swallowed: both the code and the (hold, payment) pair are unique.
func (p *PG) Save(ctx context.Context, record *models.BookingRecord) error {
	seatIDs, err := json.Marshal(record.SeatIDs)
	if err != nil {
		return fmt.Errorf("failed to encode seat ids: %w", err)
	}
	passengers, err := json.Marshal(record.Passengers)
	if err != nil {
		return fmt.Errorf("failed to encode passengers: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO bookings (
			confirmation_code, hold_id, payment_id, gateway_order_ref,
			trip_id, seat_ids, passengers, amount_charged, currency, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`, record.ConfirmationCode, record.HoldID, record.PaymentID, record.GatewayOrderRef,
		record.TripID, seatIDs, passengers, record.AmountCharged, record.Currency, record.IssuedAt)
	if err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// ByCode returns the archived booking with the given confirmation code.
func (p *PG) ByCode(ctx context.Context, code string) (*models.BookingRecord, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT confirmation_code, hold_id, payment_id, gateway_order_ref,
		       trip_id, seat_ids, passengers, amount_charged, currency, issued_at
		FROM bookings WHERE confirmation_code = $1
	`, code)
	record, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return record, nil
}

// List returns the most recent bookings, newest first.
func (p *PG) List(ctx context.Context, limit int) ([]models.BookingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT confirmation_code, hold_id, payment_id, gateway_order_ref,
		       trip_id, seat_ids, passengers, amount_charged, currency, issued_at
		FROM bookings ORDER BY issued_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var records []models.BookingRecord
	for rows.Next() {
		record, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bookings: %w", err)
	}
	return records, nil
}

func scanBooking(row pgx.Row) (*models.BookingRecord, error) {
	var (
		record     models.BookingRecord
		seatIDs    []byte
		passengers []byte
	)
	err := row.Scan(&record.ConfirmationCode, &record.HoldID, &record.PaymentID, &record.GatewayOrderRef,
		&record.TripID, &seatIDs, &passengers, &record.AmountCharged, &record.Currency, &record.IssuedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(seatIDs, &record.SeatIDs); err != nil {
		return nil, fmt.Errorf("failed to decode seat ids: %w", err)
	}
	if err := json.Unmarshal(passengers, &record.Passengers); err != nil {
		return nil, fmt.Errorf("failed to decode passengers: %w", err)
	}
	return &record, nil
}
