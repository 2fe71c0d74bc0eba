// README: Common money value object used across modules.
package types

// Money holds an amount in minor units (cents) plus an ISO currency code.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// MulSeats scales a per-seat price by a seat count.
func (m Money) MulSeats(seats int) Money {
	return Money{Amount: m.Amount * int64(seats), Currency: m.Currency}
}

// Neg returns the negated amount, used for refund transactions.
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}
