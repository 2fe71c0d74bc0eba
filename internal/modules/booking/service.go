// README: Booking service implements the booking state machine and its ledger side effects.
package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"unipool/internal/logger"
	"unipool/internal/modules/trip"
	"unipool/internal/notify"
	"unipool/internal/types"
)

// Store is the persistence surface the service needs; implemented by the pgx
// store and by in-memory fakes in tests.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)
	ListByTrip(ctx context.Context, tripID types.ID) ([]*Booking, error)
	ListByPassenger(ctx context.Context, passengerID types.ID) ([]*Booking, error)
	ListExpirable(ctx context.Context, departedBefore time.Time) ([]types.ID, error)
}

// Trips reads trip rows; the booking machine never mutates trips directly.
type Trips interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
}

// Ledger serializes seat accounting per trip. TryReserve either moves the
// counter or errors with trip.ErrInsufficientCapacity and touches nothing.
type Ledger interface {
	TryReserve(ctx context.Context, tripID types.ID, seats int) error
	Release(ctx context.Context, tripID types.ID, seats int) error
}

// Flags answers moderation questions owned by the admin module.
type Flags interface {
	IsSuspended(ctx context.Context, userID types.ID) (bool, error)
}

var (
	ErrNotFound            = errors.New("booking not found")
	ErrBadRequest          = errors.New("bad booking request")
	ErrTripNotPublished    = errors.New("trip is not published")
	ErrTripAlreadyStarted  = errors.New("trip is no longer open for cancellation")
	ErrBookingNotPending   = errors.New("booking is not pending")
	ErrBookingNotAccepted  = errors.New("booking is not accepted")
	ErrBookingTerminal     = errors.New("booking is in a terminal state")
	ErrNotTripDriver       = errors.New("actor is not the trip driver")
	ErrNotBookingPassenger = errors.New("actor is not the booking passenger")
	ErrSuspended           = errors.New("user is suspended")
)

type Service struct {
	store  Store
	trips  Trips
	ledger Ledger
	flags  Flags
	sink   notify.Sink
}

func NewService(store Store, trips Trips, ledger Ledger, flags Flags, sink notify.Sink) *Service {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Service{store: store, trips: trips, ledger: ledger, flags: flags, sink: sink}
}

type CreateCommand struct {
	TripID      types.ID
	PassengerID types.ID
	Seats       int
	Note        string
}

type AcceptCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type DeclineCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type CancelCommand struct {
	BookingID   types.ID
	PassengerID types.ID
}

// Create registers a pending booking against a published trip. Creation never
// reserves capacity; seats are only accounted for on accept.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.TripID == "" || cmd.PassengerID == "" || cmd.Seats < 1 {
		return "", ErrBadRequest
	}
	if s.flags != nil {
		suspended, err := s.flags.IsSuspended(ctx, cmd.PassengerID)
		if err != nil {
			return "", err
		}
		if suspended {
			return "", ErrSuspended
		}
	}
	t, err := s.trips.Get(ctx, cmd.TripID)
	if err != nil {
		return "", err
	}
	if t.Status != trip.StatusPublished {
		return "", ErrTripNotPublished
	}
	if cmd.Seats > t.TotalSeats {
		return "", ErrBadRequest
	}
	if t.DriverID == cmd.PassengerID {
		return "", ErrBadRequest
	}

	b := &Booking{
		ID:            newID(),
		TripID:        cmd.TripID,
		PassengerID:   cmd.PassengerID,
		Seats:         cmd.Seats,
		Status:        StatusPending,
		Note:          cmd.Note,
		PaymentMethod: PaymentMethodNone,
		PaymentStatus: PaymentStatusNone,
		CreatedAt:     time.Now(),
	}
	if err := s.store.Create(ctx, b); err != nil {
		return "", err
	}
	s.publish(b.ID, "none", StatusPending, "passenger", cmd.PassengerID)
	return b.ID, nil
}

// Accept reserves seats and then flips the booking with a compare-and-swap.
// The reservation happens first so a winning CAS always has its seats; if the
// CAS loses to a concurrent transition the reservation is rolled back, so no
// seats leak and Release runs at most once per reservation.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	t, err := s.trips.Get(ctx, b.TripID)
	if err != nil {
		return err
	}
	if t.DriverID != cmd.DriverID {
		return ErrNotTripDriver
	}
	if b.Status != StatusPending {
		return ErrBookingNotPending
	}
	if err := s.ledger.TryReserve(ctx, b.TripID, b.Seats); err != nil {
		return err
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, StatusPending, StatusAccepted, b.StatusVersion)
	if err == nil && !ok {
		err = ErrBookingNotPending
	}
	if err != nil {
		if relErr := s.ledger.Release(ctx, b.TripID, b.Seats); relErr != nil {
			logger.L.WithError(relErr).WithField("booking", string(b.ID)).
				Error("booking: reservation rollback failed")
		}
		return err
	}
	s.publish(b.ID, StatusPending, StatusAccepted, "driver", cmd.DriverID)
	return nil
}

func (s *Service) Decline(ctx context.Context, cmd DeclineCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	t, err := s.trips.Get(ctx, b.TripID)
	if err != nil {
		return err
	}
	if t.DriverID != cmd.DriverID {
		return ErrNotTripDriver
	}
	if err := s.casPending(ctx, b, StatusDeclined); err != nil {
		return err
	}
	s.publish(b.ID, StatusPending, StatusDeclined, "driver", cmd.DriverID)
	return nil
}

// AutoDecline is the system-triggered equivalent of decline, used when a trip
// is force-canceled. No ledger effect: pending bookings hold no seats.
func (s *Service) AutoDecline(ctx context.Context, bookingID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.casPending(ctx, b, StatusDeclinedAuto); err != nil {
		return err
	}
	s.publish(b.ID, StatusPending, StatusDeclinedAuto, "system", "")
	return nil
}

// Cancel is the passenger-side exit. Only legal while the trip is still
// published; once it starts, the seats ride to completion or admin override.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.PassengerID != cmd.PassengerID {
		return ErrNotBookingPassenger
	}
	if b.Status != StatusPending && b.Status != StatusAccepted {
		return ErrBookingTerminal
	}
	t, err := s.trips.Get(ctx, b.TripID)
	if err != nil {
		return err
	}
	if t.Status != trip.StatusPublished {
		return ErrTripAlreadyStarted
	}

	from := b.Status
	ok, err := s.store.UpdateStatus(ctx, b.ID, from, StatusCanceledByPassenger, b.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		if from == StatusAccepted {
			return ErrBookingNotAccepted
		}
		return ErrBookingNotPending
	}
	// Winning the CAS from accepted is what guarantees this release happens
	// exactly once for the reservation made at accept time.
	if from == StatusAccepted {
		if err := s.ledger.Release(ctx, b.TripID, b.Seats); err != nil {
			logger.L.WithError(err).WithField("booking", string(b.ID)).
				Error("booking: seat release failed after cancel")
		}
	}
	s.publish(b.ID, from, StatusCanceledByPassenger, "passenger", cmd.PassengerID)
	return nil
}

// CancelByPlatform terminates an accepted booking and releases its seats; used
// by the admin module for force-cancel cascades and corrections.
func (s *Service) CancelByPlatform(ctx context.Context, bookingID, actorID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status != StatusAccepted {
		return ErrBookingNotAccepted
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, StatusAccepted, StatusCanceledByPlatform, b.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBookingNotAccepted
	}
	if err := s.ledger.Release(ctx, b.TripID, b.Seats); err != nil {
		logger.L.WithError(err).WithField("booking", string(b.ID)).
			Error("booking: seat release failed after platform cancel")
	}
	s.publish(b.ID, StatusAccepted, StatusCanceledByPlatform, "admin", actorID)
	return nil
}

// DeclineByAdmin marks a pending booking declined_by_admin; a correction, not
// a normal decline. No ledger effect.
func (s *Service) DeclineByAdmin(ctx context.Context, bookingID, actorID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.casPending(ctx, b, StatusDeclinedByAdmin); err != nil {
		return err
	}
	s.publish(b.ID, StatusPending, StatusDeclinedByAdmin, "admin", actorID)
	return nil
}

// Expire marks a pending booking expired. The CAS guard means the sweep can
// never race-expire a booking the driver just accepted.
func (s *Service) Expire(ctx context.Context, bookingID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.casPending(ctx, b, StatusExpired); err != nil {
		return err
	}
	s.publish(b.ID, StatusPending, StatusExpired, "system", "")
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByTrip(ctx context.Context, tripID types.ID) ([]*Booking, error) {
	return s.store.ListByTrip(ctx, tripID)
}

func (s *Service) ListByPassenger(ctx context.Context, passengerID types.ID) ([]*Booking, error) {
	return s.store.ListByPassenger(ctx, passengerID)
}

// RunExpirySweep periodically expires pending bookings whose trip departed at
// least grace ago. Scheduled, not request-synchronous.
func (s *Service) RunExpirySweep(ctx context.Context, tick, grace time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx, grace)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context, grace time.Duration) {
	ids, err := s.store.ListExpirable(ctx, time.Now().Add(-grace))
	if err != nil {
		logger.L.WithError(err).Warn("booking: expiry sweep query failed")
		return
	}
	for _, id := range ids {
		err := s.Expire(ctx, id)
		if err != nil && !errors.Is(err, ErrBookingNotPending) && !errors.Is(err, ErrNotFound) {
			logger.L.WithError(err).WithField("booking", string(id)).Warn("booking: expire failed")
		}
	}
}

func (s *Service) casPending(ctx context.Context, b *Booking, to Status) error {
	if b.Status != StatusPending {
		return ErrBookingNotPending
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, StatusPending, to, b.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBookingNotPending
	}
	return nil
}

func (s *Service) publish(id types.ID, from, to Status, actorType string, actorID types.ID) {
	s.sink.Publish(notify.Event{
		EntityType: "booking", EntityID: id,
		From: string(from), To: string(to),
		ActorType: actorType, ActorID: actorID, At: time.Now(),
	})
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
