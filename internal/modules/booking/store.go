// README: Booking store backed by PostgreSQL.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unipool/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (
			id, trip_id, passenger_id, seats, status, status_version,
			note, payment_method, payment_status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, 0,
			$6, $7, $8, $9
		)`,
		string(b.ID),
		string(b.TripID),
		string(b.PassengerID),
		b.Seats,
		string(b.Status),
		b.Note,
		string(b.PaymentMethod),
		string(b.PaymentStatus),
		b.CreatedAt,
	)
	return err
}

const bookingColumns = `
	id, trip_id, passenger_id, seats, status, status_version,
	note, payment_method, payment_status, created_at, decided_at, canceled_at`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	return scanBooking(row)
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var decidedAt, canceledAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.TripID, &b.PassengerID, &b.Seats, &b.Status, &b.StatusVersion,
		&b.Note, &b.PaymentMethod, &b.PaymentStatus, &b.CreatedAt, &decidedAt, &canceledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.DecidedAt = toTimePtr(decidedAt)
	b.CanceledAt = toTimePtr(canceledAt)
	return &b, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    status_version = status_version + 1,
		    decided_at = CASE WHEN $1 IN ('accepted','declined','declined_auto','declined_by_admin','expired') THEN NOW() ELSE decided_at END,
		    canceled_at = CASE WHEN $1 IN ('canceled_by_passenger','canceled_by_platform') THEN NOW() ELSE canceled_at END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to),
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdatePayment is a compare-and-swap on the payment sub-state; used by the
// payment reconciler, never by the booking state machine itself.
func (s *PGStore) UpdatePayment(ctx context.Context, id types.ID, method PaymentMethod, from, to PaymentStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET payment_method = $2, payment_status = $3
		WHERE id = $1 AND payment_status = $4`,
		string(id),
		string(method),
		string(to),
		string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ListByTrip(ctx context.Context, tripID types.ID) ([]*Booking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT`+bookingColumns+` FROM bookings WHERE trip_id = $1 ORDER BY created_at`, string(tripID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (s *PGStore) ListByPassenger(ctx context.Context, passengerID types.ID) ([]*Booking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT`+bookingColumns+` FROM bookings WHERE passenger_id = $1 ORDER BY created_at DESC`, string(passengerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListExpirable returns pending bookings whose trip departed before the cutoff.
func (s *PGStore) ListExpirable(ctx context.Context, departedBefore time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.id
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.status = 'pending' AND t.departure_at <= $1`,
		departedBefore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectBookings(rows pgx.Rows) ([]*Booking, error) {
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
