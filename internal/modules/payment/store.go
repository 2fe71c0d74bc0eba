// README: Transaction store backed by PostgreSQL; rows are append-only except status settlement.
package payment

import (
	"context"
	"database/sql"
	"errors"

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

func (s *PGStore) Create(ctx context.Context, t *Transaction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO transactions (
			id, booking_id, amount, currency, payment_intent_id,
			status, refund_of, refund_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(t.ID),
		string(t.BookingID),
		t.Amount.Amount,
		t.Amount.Currency,
		t.PaymentIntentID,
		string(t.Status),
		toStringPtr(t.RefundOf),
		t.RefundReason,
		t.CreatedAt,
	)
	return err
}

const txColumns = `
	id, booking_id, amount, currency, payment_intent_id,
	status, refund_of, refund_reason, created_at`

func (s *PGStore) GetByIntent(ctx context.Context, intentID string) (*Transaction, error) {
	row := s.db.QueryRow(ctx,
		`SELECT`+txColumns+` FROM transactions WHERE payment_intent_id = $1`, intentID)
	return scanTx(row)
}

func (s *PGStore) MarkSucceeded(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE transactions SET status = 'succeeded' WHERE id = $1 AND status = 'pending'`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) MarkCashSucceeded(ctx context.Context, bookingID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE transactions SET status = 'succeeded'
		WHERE booking_id = $1 AND payment_intent_id IS NULL AND status = 'pending'`,
		string(bookingID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) LatestSucceededCard(ctx context.Context, bookingID types.ID) (*Transaction, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+txColumns+`
		FROM transactions
		WHERE booking_id = $1 AND payment_intent_id IS NOT NULL
		  AND status = 'succeeded' AND amount > 0 AND refund_of IS NULL
		ORDER BY created_at DESC
		LIMIT 1`,
		string(bookingID))
	return scanTx(row)
}

func (s *PGStore) ListByBooking(ctx context.Context, bookingID types.ID) ([]*Transaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT`+txColumns+` FROM transactions WHERE booking_id = $1 ORDER BY created_at`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTx(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var intentID, refundOf, refundReason sql.NullString

	err := row.Scan(
		&t.ID, &t.BookingID, &t.Amount.Amount, &t.Amount.Currency, &intentID,
		&t.Status, &refundOf, &refundReason, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if intentID.Valid {
		t.PaymentIntentID = &intentID.String
	}
	if refundOf.Valid {
		id := types.ID(refundOf.String)
		t.RefundOf = &id
	}
	if refundReason.Valid {
		t.RefundReason = &refundReason.String
	}
	return &t, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
