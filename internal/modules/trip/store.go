// README: Trip store backed by PostgreSQL.
package trip

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

func (s *PGStore) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, driver_id, origin, destination, departure_at, estimated_arrival_at,
			price_per_seat, currency, total_seats, seats_allocated,
			status, status_version, notes, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, 0,
			$10, 0, $11, $12
		)`,
		string(t.ID),
		string(t.DriverID),
		t.Origin,
		t.Destination,
		t.DepartureAt,
		t.EstimatedArrivalAt,
		t.PricePerSeat.Amount,
		t.PricePerSeat.Currency,
		t.TotalSeats,
		string(t.Status),
		t.Notes,
		t.CreatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, driver_id, origin, destination, departure_at, estimated_arrival_at,
		       price_per_seat, currency, total_seats, seats_allocated,
		       status, status_version, notes, created_at,
		       published_at, started_at, completed_at, canceled_at, cancel_reason
		FROM trips
		WHERE id = $1`, string(id),
	)
	return scanTrip(row)
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	var publishedAt, startedAt, completedAt, canceledAt sql.NullTime
	var cancelReason sql.NullString

	err := row.Scan(
		&t.ID, &t.DriverID, &t.Origin, &t.Destination, &t.DepartureAt, &t.EstimatedArrivalAt,
		&t.PricePerSeat.Amount, &t.PricePerSeat.Currency, &t.TotalSeats, &t.SeatsAllocated,
		&t.Status, &t.StatusVersion, &t.Notes, &t.CreatedAt,
		&publishedAt, &startedAt, &completedAt, &canceledAt, &cancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.PublishedAt = toTimePtr(publishedAt)
	t.StartedAt = toTimePtr(startedAt)
	t.CompletedAt = toTimePtr(completedAt)
	t.CanceledAt = toTimePtr(canceledAt)
	if cancelReason.Valid {
		t.CancelReason = &cancelReason.String
	}
	return &t, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    status_version = status_version + 1,
		    cancel_reason = COALESCE($2, cancel_reason),
		    published_at = CASE WHEN $1 = 'published' THEN NOW() ELSE published_at END,
		    started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    canceled_at = CASE WHEN $1 = 'canceled' THEN NOW() ELSE canceled_at END
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		reason,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, driver_id, origin, destination, departure_at, estimated_arrival_at,
		       price_per_seat, currency, total_seats, seats_allocated,
		       status, status_version, notes, created_at,
		       published_at, started_at, completed_at, canceled_at, cancel_reason
		FROM trips
		WHERE driver_id = $1
		ORDER BY departure_at DESC`, string(driverID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
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
