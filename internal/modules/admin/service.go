// README: Admin override service; privileged transitions with mandatory audit records.
package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"unipool/internal/logger"
	"unipool/internal/modules/booking"
	"unipool/internal/modules/payment"
	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

// Audit is the append-only moderation log.
type Audit interface {
	Append(ctx context.Context, a *ModerationAction) error
	ListByEntity(ctx context.Context, entityType string, entityID types.ID) ([]*ModerationAction, error)
}

// Flags is the moderation flag surface (suspensions, publish bans).
type Flags interface {
	Suspend(ctx context.Context, userID types.ID) error
	Unsuspend(ctx context.Context, userID types.ID) error
	SetPublishBan(ctx context.Context, driverID types.ID, until time.Time, reason string) error
	ClearPublishBan(ctx context.Context, driverID types.ID) error
}

// TripMachine and BookingMachine are the same state machines ordinary actors
// use; the admin layer re-enters them with relaxed preconditions, it never
// mutates rows behind their backs.
type TripMachine interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
	ForceCancel(ctx context.Context, cmd trip.ForceCancelCommand) error
}

type BookingMachine interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
	ListByTrip(ctx context.Context, tripID types.ID) ([]*booking.Booking, error)
	AutoDecline(ctx context.Context, bookingID types.ID) error
	CancelByPlatform(ctx context.Context, bookingID, actorID types.ID) error
	DeclineByAdmin(ctx context.Context, bookingID, actorID types.ID) error
}

type Refunder interface {
	Refund(ctx context.Context, cmd payment.RefundCommand) (*payment.Transaction, error)
}

var (
	ErrReasonRequired = errors.New("moderation reason must be at least 5 characters")
	ErrInvalidTarget  = errors.New("invalid correction target for current booking state")
	ErrRefundInvalid  = errors.New("refund not applicable to this correction")
)

type Service struct {
	audit    Audit
	flags    Flags
	trips    TripMachine
	bookings BookingMachine
	payments Refunder
}

func NewService(audit Audit, flags Flags, trips TripMachine, bookings BookingMachine, payments Refunder) *Service {
	return &Service{audit: audit, flags: flags, trips: trips, bookings: bookings, payments: payments}
}

type SuspendCommand struct {
	UserID  types.ID
	ActorID types.ID
	Reason  string
}

type PublishBanCommand struct {
	DriverID types.ID
	ActorID  types.ID
	// BanUntil nil lifts the ban.
	BanUntil *time.Time
	Reason   string
}

type ForceCancelTripCommand struct {
	TripID  types.ID
	ActorID types.ID
	Reason  string
}

type CorrectBookingCommand struct {
	BookingID types.ID
	Target    booking.Status
	ActorID   types.ID
	Reason    string
	// RefundAmount is in minor units; zero with Refund=true refunds the full
	// charge.
	Refund       bool
	RefundAmount int64
}

func (s *Service) SuspendUser(ctx context.Context, cmd SuspendCommand) error {
	if err := validReason(cmd.Reason); err != nil {
		return err
	}
	if err := s.flags.Suspend(ctx, cmd.UserID); err != nil {
		return err
	}
	return s.record(ctx, "user", cmd.UserID, cmd.ActorID, ActionSuspendUser, cmd.Reason)
}

func (s *Service) UnsuspendUser(ctx context.Context, cmd SuspendCommand) error {
	if err := validReason(cmd.Reason); err != nil {
		return err
	}
	if err := s.flags.Unsuspend(ctx, cmd.UserID); err != nil {
		return err
	}
	return s.record(ctx, "user", cmd.UserID, cmd.ActorID, ActionUnsuspendUser, cmd.Reason)
}

// SetDriverPublishBan blocks publishing for the driver until the given time;
// already-published trips are unaffected.
func (s *Service) SetDriverPublishBan(ctx context.Context, cmd PublishBanCommand) error {
	if err := validReason(cmd.Reason); err != nil {
		return err
	}
	if cmd.BanUntil == nil {
		if err := s.flags.ClearPublishBan(ctx, cmd.DriverID); err != nil {
			return err
		}
		return s.record(ctx, "user", cmd.DriverID, cmd.ActorID, ActionPublishBanLifted, cmd.Reason)
	}
	if err := s.flags.SetPublishBan(ctx, cmd.DriverID, *cmd.BanUntil, cmd.Reason); err != nil {
		return err
	}
	return s.record(ctx, "user", cmd.DriverID, cmd.ActorID, ActionPublishBan, cmd.Reason)
}

// ForceCancelTrip cancels a published or in-progress trip and cascades:
// pending bookings are auto-declined, accepted bookings are canceled by the
// platform with their seats released, and settled card payments are refunded.
// One audit record per mutated entity.
func (s *Service) ForceCancelTrip(ctx context.Context, cmd ForceCancelTripCommand) error {
	if err := validReason(cmd.Reason); err != nil {
		return err
	}
	err := s.trips.ForceCancel(ctx, trip.ForceCancelCommand{
		TripID:  cmd.TripID,
		ActorID: cmd.ActorID,
		Reason:  cmd.Reason,
	})
	if err != nil {
		return err
	}
	if err := s.record(ctx, "trip", cmd.TripID, cmd.ActorID, ActionForceCancelTrip, cmd.Reason); err != nil {
		return err
	}

	list, err := s.bookings.ListByTrip(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	for _, b := range list {
		switch b.Status {
		case booking.StatusPending:
			if err := s.bookings.AutoDecline(ctx, b.ID); err != nil {
				s.cascadeWarn(b.ID, err)
				continue
			}
		case booking.StatusAccepted:
			if err := s.bookings.CancelByPlatform(ctx, b.ID, cmd.ActorID); err != nil {
				s.cascadeWarn(b.ID, err)
				continue
			}
			if b.PaymentMethod == booking.PaymentMethodCard && b.PaymentStatus == booking.PaymentStatusCompleted {
				if _, err := s.payments.Refund(ctx, payment.RefundCommand{
					BookingID: b.ID,
					ActorID:   cmd.ActorID,
					Reason:    cmd.Reason,
				}); err != nil {
					s.cascadeWarn(b.ID, err)
				}
			}
		default:
			continue
		}
		if err := s.record(ctx, "booking", b.ID, cmd.ActorID, ActionForceCancelTrip, cmd.Reason); err != nil {
			return err
		}
	}
	return nil
}

// CorrectBookingState is the surgical override: declined_by_admin is only
// legal from pending, canceled_by_platform only from accepted. The capacity
// effect is exactly what the corresponding ordinary transition would do.
func (s *Service) CorrectBookingState(ctx context.Context, cmd CorrectBookingCommand) error {
	if err := validReason(cmd.Reason); err != nil {
		return err
	}
	b, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}

	switch cmd.Target {
	case booking.StatusDeclinedByAdmin:
		if b.Status != booking.StatusPending {
			return ErrInvalidTarget
		}
		if cmd.Refund {
			// A pending booking can have no settled payment to refund.
			return ErrRefundInvalid
		}
		if err := s.bookings.DeclineByAdmin(ctx, cmd.BookingID, cmd.ActorID); err != nil {
			return err
		}
	case booking.StatusCanceledByPlatform:
		if b.Status != booking.StatusAccepted {
			return ErrInvalidTarget
		}
		if err := s.bookings.CancelByPlatform(ctx, cmd.BookingID, cmd.ActorID); err != nil {
			return err
		}
		if cmd.Refund {
			if _, err := s.payments.Refund(ctx, payment.RefundCommand{
				BookingID: cmd.BookingID,
				ActorID:   cmd.ActorID,
				Amount:    cmd.RefundAmount,
				Reason:    cmd.Reason,
			}); err != nil {
				return err
			}
		}
	default:
		return ErrInvalidTarget
	}
	return s.record(ctx, "booking", cmd.BookingID, cmd.ActorID, ActionCorrectBooking, cmd.Reason)
}

func (s *Service) History(ctx context.Context, entityType string, entityID types.ID) ([]*ModerationAction, error) {
	return s.audit.ListByEntity(ctx, entityType, entityID)
}

func (s *Service) record(ctx context.Context, entityType string, entityID, actorID types.ID, action, reason string) error {
	return s.audit.Append(ctx, &ModerationAction{
		ID:         types.ID(uuid.NewString()),
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		Reason:     reason,
		CreatedAt:  time.Now(),
	})
}

func (s *Service) cascadeWarn(id types.ID, err error) {
	logger.L.WithError(err).WithField("booking", string(id)).Warn("admin: force-cancel cascade step failed")
}

func validReason(reason string) error {
	if len(strings.TrimSpace(reason)) < 5 {
		return ErrReasonRequired
	}
	return nil
}
