// README: Payment reconciler; card intents, cash confirmation, and admin refunds.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"unipool/internal/clients"
	"unipool/internal/logger"
	"unipool/internal/modules/booking"
	"unipool/internal/modules/trip"
	"unipool/internal/notify"
	"unipool/internal/types"
)

// Store is the transaction persistence surface.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	GetByIntent(ctx context.Context, intentID string) (*Transaction, error)
	MarkSucceeded(ctx context.Context, id types.ID) (bool, error)
	MarkCashSucceeded(ctx context.Context, bookingID types.ID) (bool, error)
	LatestSucceededCard(ctx context.Context, bookingID types.ID) (*Transaction, error)
	ListByBooking(ctx context.Context, bookingID types.ID) ([]*Transaction, error)
}

// Bookings is the slice of the booking store the reconciler needs: reads plus
// the payment sub-state compare-and-swap. It never touches booking status.
type Bookings interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
	UpdatePayment(ctx context.Context, id types.ID, method booking.PaymentMethod, from, to booking.PaymentStatus) (bool, error)
}

type Trips interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
}

var (
	ErrNotFound             = errors.New("transaction not found")
	ErrBadRequest           = errors.New("bad payment request")
	ErrPaymentWindowClosed  = errors.New("payment window is closed")
	ErrWrongActor           = errors.New("wrong actor for payment operation")
	ErrAlreadyCompleted     = errors.New("payment already completed")
	ErrNoSuchIntent         = errors.New("unknown payment intent")
	ErrPaymentConflict      = errors.New("payment state conflict")
	ErrNotCashBooking       = errors.New("booking is not a cash booking")
	ErrNoCardCharge         = errors.New("no completed card payment to refund")
	ErrRefundExceedsCharge  = errors.New("refund exceeds original charge")
	ErrProcessorUnavailable = errors.New("card processor unavailable")
)

type Service struct {
	store     Store
	bookings  Bookings
	trips     Trips
	processor clients.CardProcessor
	sink      notify.Sink
}

func NewService(store Store, bookings Bookings, trips Trips, processor clients.CardProcessor, sink notify.Sink) *Service {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Service{store: store, bookings: bookings, trips: trips, processor: processor, sink: sink}
}

type CreateIntentCommand struct {
	BookingID   types.ID
	PassengerID types.ID
}

// IntentResult is returned to the client so it can drive the processor's
// confirmation flow.
type IntentResult struct {
	IntentID     string
	ClientSecret string
	Amount       types.Money
}

type ConfirmCommand struct {
	BookingID       types.ID
	PassengerID     types.ID
	PaymentIntentID string
}

type SelectCashCommand struct {
	BookingID   types.ID
	PassengerID types.ID
}

type ConfirmCashCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type RefundCommand struct {
	BookingID types.ID
	ActorID   types.ID
	// Amount is optional; zero means refund the full original charge.
	Amount int64
	Reason string
}

// CreateIntent opens a card payment for an accepted booking inside the payment
// window. The processor round trip happens with no locks held; a failure
// leaves the booking's payment state untouched.
func (s *Service) CreateIntent(ctx context.Context, cmd CreateIntentCommand) (*IntentResult, error) {
	b, t, err := s.loadPair(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.PassengerID != cmd.PassengerID {
		return nil, ErrWrongActor
	}
	if b.PaymentStatus == booking.PaymentStatusCompleted {
		return nil, ErrAlreadyCompleted
	}
	if b.Status != booking.StatusAccepted || !trip.PaymentWindowOpen(t.Status) {
		return nil, ErrPaymentWindowClosed
	}

	amount := t.PricePerSeat.MulSeats(b.Seats)
	intent, err := s.processor.CreateIntent(ctx, amount.Amount, amount.Currency)
	if err != nil {
		logger.L.WithError(err).WithField("booking", string(b.ID)).Warn("payment: intent creation failed")
		return nil, ErrProcessorUnavailable
	}

	tx := &Transaction{
		ID:              types.ID(uuid.NewString()),
		BookingID:       b.ID,
		Amount:          amount,
		PaymentIntentID: &intent.ID,
		Status:          TxPending,
		CreatedAt:       time.Now(),
	}
	if err := s.store.Create(ctx, tx); err != nil {
		return nil, err
	}
	ok, err := s.bookings.UpdatePayment(ctx, b.ID, booking.PaymentMethodCard, b.PaymentStatus, booking.PaymentStatusPending)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaymentConflict
	}
	s.publish(b.ID, "payment_none", "payment_pending", "passenger", cmd.PassengerID)
	return &IntentResult{IntentID: intent.ID, ClientSecret: intent.ClientSecret, Amount: amount}, nil
}

// Confirm settles a card payment after the processor reports success. It is
// idempotent per intent id: a repeat confirm returns the settled record and
// changes nothing.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) (*Transaction, error) {
	tx, err := s.store.GetByIntent(ctx, cmd.PaymentIntentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoSuchIntent
		}
		return nil, err
	}
	if tx.BookingID != cmd.BookingID {
		return nil, ErrNoSuchIntent
	}
	if tx.Status == TxSucceeded {
		return tx, nil
	}
	if tx.Status == TxFailed {
		return nil, ErrPaymentConflict
	}

	b, t, err := s.loadPair(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.PassengerID != cmd.PassengerID {
		return nil, ErrWrongActor
	}
	if b.Status != booking.StatusAccepted || !trip.PaymentWindowOpen(t.Status) {
		return nil, ErrPaymentWindowClosed
	}

	ok, err := s.store.MarkSucceeded(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent confirm won; re-read and return the settled record.
		return s.store.GetByIntent(ctx, cmd.PaymentIntentID)
	}
	if _, err := s.bookings.UpdatePayment(ctx, b.ID, booking.PaymentMethodCard, booking.PaymentStatusPending, booking.PaymentStatusCompleted); err != nil {
		return nil, err
	}
	tx.Status = TxSucceeded
	s.publish(b.ID, "payment_pending", "payment_completed", "passenger", cmd.PassengerID)
	return tx, nil
}

// SelectCash records the passenger's intent to pay the driver in cash. No
// external call; opens a pending cash transaction for the audit trail.
func (s *Service) SelectCash(ctx context.Context, cmd SelectCashCommand) error {
	b, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.PassengerID != cmd.PassengerID {
		return ErrWrongActor
	}
	if b.PaymentStatus == booking.PaymentStatusCompleted {
		return ErrAlreadyCompleted
	}
	if b.Status != booking.StatusAccepted {
		return booking.ErrBookingNotAccepted
	}

	t, err := s.trips.Get(ctx, b.TripID)
	if err != nil {
		return err
	}
	ok, err := s.bookings.UpdatePayment(ctx, b.ID, booking.PaymentMethodCash, b.PaymentStatus, booking.PaymentStatusPending)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPaymentConflict
	}
	tx := &Transaction{
		ID:        types.ID(uuid.NewString()),
		BookingID: b.ID,
		Amount:    t.PricePerSeat.MulSeats(b.Seats),
		Status:    TxPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, tx); err != nil {
		return err
	}
	s.publish(b.ID, "payment_none", "payment_pending", "passenger", cmd.PassengerID)
	return nil
}

// ConfirmCash settles a cash payment. Only the trip's driver may confirm:
// the passenger handing over cash proves nothing, the driver receiving it
// does. Window rules still apply.
func (s *Service) ConfirmCash(ctx context.Context, cmd ConfirmCashCommand) error {
	b, t, err := s.loadPair(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if t.DriverID != cmd.DriverID {
		return ErrWrongActor
	}
	if b.PaymentMethod != booking.PaymentMethodCash {
		return ErrNotCashBooking
	}
	if b.PaymentStatus == booking.PaymentStatusCompleted {
		return ErrAlreadyCompleted
	}
	if b.PaymentStatus != booking.PaymentStatusPending {
		return ErrBadRequest
	}
	if b.Status != booking.StatusAccepted || !trip.PaymentWindowOpen(t.Status) {
		return ErrPaymentWindowClosed
	}

	ok, err := s.bookings.UpdatePayment(ctx, b.ID, booking.PaymentMethodCash, booking.PaymentStatusPending, booking.PaymentStatusCompleted)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPaymentConflict
	}
	if _, err := s.store.MarkCashSucceeded(ctx, b.ID); err != nil {
		logger.L.WithError(err).WithField("booking", string(b.ID)).Warn("payment: cash transaction settle failed")
	}
	s.publish(b.ID, "payment_pending", "payment_completed", "driver", cmd.DriverID)
	return nil
}

// Refund appends a negative-amount transaction against the latest settled
// card charge for the booking. Only the admin module calls this; the original
// record is never mutated.
func (s *Service) Refund(ctx context.Context, cmd RefundCommand) (*Transaction, error) {
	orig, err := s.store.LatestSucceededCard(ctx, cmd.BookingID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoCardCharge
		}
		return nil, err
	}
	amount := cmd.Amount
	if amount == 0 {
		amount = orig.Amount.Amount
	}
	if amount < 0 || amount > orig.Amount.Amount {
		return nil, ErrRefundExceedsCharge
	}

	reason := cmd.Reason
	refund := &Transaction{
		ID:           types.ID(uuid.NewString()),
		BookingID:    cmd.BookingID,
		Amount:       types.Money{Amount: -amount, Currency: orig.Amount.Currency},
		Status:       TxSucceeded,
		RefundOf:     &orig.ID,
		RefundReason: &reason,
		CreatedAt:    time.Now(),
	}
	if err := s.store.Create(ctx, refund); err != nil {
		return nil, err
	}
	s.publish(cmd.BookingID, "payment_completed", "payment_refunded", "admin", cmd.ActorID)
	return refund, nil
}

func (s *Service) ListByBooking(ctx context.Context, bookingID types.ID) ([]*Transaction, error) {
	return s.store.ListByBooking(ctx, bookingID)
}

func (s *Service) loadPair(ctx context.Context, bookingID types.ID) (*booking.Booking, *trip.Trip, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.trips.Get(ctx, b.TripID)
	if err != nil {
		return nil, nil, err
	}
	return b, t, nil
}

func (s *Service) publish(id types.ID, from, to, actorType string, actorID types.ID) {
	s.sink.Publish(notify.Event{
		EntityType: "booking", EntityID: id,
		From: from, To: to,
		ActorType: actorType, ActorID: actorID, At: time.Now(),
	})
}
