// README: Capacity ledger; seat reservation as a single conditional update on the trip row.
package trip

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"unipool/internal/types"
)

var (
	ErrInsufficientCapacity = errors.New("insufficient seat capacity")
	ErrReleaseUnderflow     = errors.New("seat release exceeds allocation")
)

// Ledger owns the seats_allocated counter on the trips table. TryReserve is
// atomic with respect to concurrent reservations on the same trip: the
// conditional UPDATE either moves the counter or touches nothing, so two
// racing accepts can never oversell. Release must be called at most once per
// successful reservation; the booking state machine enforces that by winning
// its own compare-and-swap before releasing.
type Ledger struct {
	db *pgxpool.Pool
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) TryReserve(ctx context.Context, tripID types.ID, seats int) error {
	tag, err := l.db.Exec(ctx, `
		UPDATE trips
		SET seats_allocated = seats_allocated + $2
		WHERE id = $1 AND total_seats - seats_allocated >= $2`,
		string(tripID), seats,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrInsufficientCapacity
	}
	return nil
}

func (l *Ledger) Release(ctx context.Context, tripID types.ID, seats int) error {
	tag, err := l.db.Exec(ctx, `
		UPDATE trips
		SET seats_allocated = seats_allocated - $2
		WHERE id = $1 AND seats_allocated >= $2`,
		string(tripID), seats,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrReleaseUnderflow
	}
	return nil
}
