// README: Trip aggregate and status definitions.
package trip

import (
	"time"

	"unipool/internal/types"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
)

type Trip struct {
	ID                 types.ID
	DriverID           types.ID
	Origin             string
	Destination        string
	DepartureAt        time.Time
	EstimatedArrivalAt time.Time
	PricePerSeat       types.Money
	TotalSeats         int
	SeatsAllocated     int
	Status             Status
	StatusVersion      int
	Notes              string
	CreatedAt          time.Time
	PublishedAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CanceledAt         *time.Time
	CancelReason       *string
}

// RemainingSeats is the derived capacity counter: total minus seats held by
// accepted bookings.
func (t *Trip) RemainingSeats() int {
	return t.TotalSeats - t.SeatsAllocated
}

// AllowedTransitions represents the trip state flow as code. The canceled
// branches are reachable only through the admin force-cancel path; ordinary
// driver actions go forward only.
var AllowedTransitions = map[Status][]Status{
	StatusDraft:      {StatusPublished},
	StatusPublished:  {StatusInProgress, StatusCanceled},
	StatusInProgress: {StatusCompleted, StatusCanceled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a trip status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(AllowedTransitions[s]) == 0
}

// PaymentWindowOpen reports whether payment confirmation is permitted for
// bookings on a trip in this status.
func PaymentWindowOpen(s Status) bool {
	return s == StatusInProgress || s == StatusCompleted
}
