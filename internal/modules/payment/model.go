// README: Payment transaction record definitions.
package payment

import (
	"time"

	"unipool/internal/types"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxSucceeded TxStatus = "succeeded"
	TxFailed    TxStatus = "failed"
)

// Transaction is the append-only financial record for a booking. Refunds are
// new rows with a negative amount referencing the original via RefundOf; the
// original row is never mutated after it settles.
type Transaction struct {
	ID              types.ID
	BookingID       types.ID
	Amount          types.Money
	PaymentIntentID *string
	Status          TxStatus
	RefundOf        *types.ID
	RefundReason    *string
	CreatedAt       time.Time
}

// IsCard reports whether the transaction went through the card processor.
func (t *Transaction) IsCard() bool {
	return t.PaymentIntentID != nil
}
