// README: Booking aggregate, status definitions, and the derived effective state.
package booking

import (
	"time"

	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

type Status string

const (
	StatusPending             Status = "pending"
	StatusAccepted            Status = "accepted"
	StatusDeclined            Status = "declined"
	StatusDeclinedAuto        Status = "declined_auto"
	StatusCanceledByPassenger Status = "canceled_by_passenger"
	StatusCanceledByPlatform  Status = "canceled_by_platform"
	StatusDeclinedByAdmin     Status = "declined_by_admin"
	StatusExpired             Status = "expired"
)

type PaymentMethod string

const (
	PaymentMethodNone PaymentMethod = "none"
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentStatusNone      PaymentStatus = "none"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

type Booking struct {
	ID            types.ID
	TripID        types.ID
	PassengerID   types.ID
	Seats         int
	Status        Status
	StatusVersion int
	Note          string
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	DecidedAt     *time.Time
	CanceledAt    *time.Time
}

// AllowedTransitions represents the booking state flow as code. The admin
// targets (declined_by_admin, canceled_by_platform) are reachable only through
// the admin module; the table just says where they may land.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {
		StatusAccepted, StatusDeclined, StatusDeclinedAuto,
		StatusExpired, StatusCanceledByPassenger, StatusDeclinedByAdmin,
	},
	StatusAccepted: {
		StatusCanceledByPassenger, StatusCanceledByPlatform, StatusDeclinedByAdmin,
	},
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

// IsTerminal reports whether a booking status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(AllowedTransitions[s]) == 0
}

// EffectiveState is the display state derived from booking status plus trip
// status. The client previously recombined the two fields ad hoc; this is the
// single place the combination lives.
type EffectiveState string

const (
	EffectiveAwaitingDriver EffectiveState = "awaiting_driver"
	EffectiveLapsed         EffectiveState = "lapsed"
	EffectiveConfirmed      EffectiveState = "confirmed"
	EffectiveRiding         EffectiveState = "riding"
	EffectivePaymentDue     EffectiveState = "payment_due"
	EffectiveCompleted      EffectiveState = "completed"
	EffectiveTripCanceled   EffectiveState = "trip_canceled"
)

func Effective(b *Booking, tripStatus trip.Status) EffectiveState {
	if IsTerminal(b.Status) {
		return EffectiveState(b.Status)
	}
	switch b.Status {
	case StatusPending:
		switch tripStatus {
		case trip.StatusCanceled:
			return EffectiveTripCanceled
		case trip.StatusInProgress, trip.StatusCompleted:
			// Driver never decided before departure; the sweep will expire it.
			return EffectiveLapsed
		default:
			return EffectiveAwaitingDriver
		}
	case StatusAccepted:
		switch tripStatus {
		case trip.StatusCanceled:
			return EffectiveTripCanceled
		case trip.StatusInProgress:
			return EffectiveRiding
		case trip.StatusCompleted:
			if b.PaymentStatus == PaymentStatusCompleted {
				return EffectiveCompleted
			}
			return EffectivePaymentDue
		default:
			return EffectiveConfirmed
		}
	}
	return EffectiveState(b.Status)
}
