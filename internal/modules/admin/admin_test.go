// README: Admin override tests; cascades run through the real trip and booking machines.
package admin

import (
	"context"
	"sync"
	"testing"
	"time"

	"unipool/internal/modules/booking"
	"unipool/internal/modules/payment"
	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

// world is shared in-memory state; small adapter views below satisfy the
// store interfaces of each module so the admin service drives the real state
// machines end to end.
type world struct {
	mu        sync.Mutex
	trips     map[types.ID]*trip.Trip
	bookings  map[types.ID]*booking.Booking
	suspended map[types.ID]bool
	banned    map[types.ID]bool
	actions   []*ModerationAction
}

func newWorld() *world {
	return &world{
		trips:     map[types.ID]*trip.Trip{},
		bookings:  map[types.ID]*booking.Booking{},
		suspended: map[types.ID]bool{},
		banned:    map[types.ID]bool{},
	}
}

type tripStore struct{ w *world }

func (s tripStore) Create(_ context.Context, t *trip.Trip) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	cp := *t
	s.w.trips[t.ID] = &cp
	return nil
}

func (s tripStore) Get(_ context.Context, id types.ID) (*trip.Trip, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	t, ok := s.w.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s tripStore) UpdateStatus(_ context.Context, id types.ID, from, to trip.Status, version int, reason *string) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	t, ok := s.w.trips[id]
	if !ok || t.Status != from || t.StatusVersion != version {
		return false, nil
	}
	t.Status = to
	t.StatusVersion++
	if reason != nil {
		r := *reason
		t.CancelReason = &r
	}
	return true, nil
}

func (s tripStore) ListByDriver(_ context.Context, driverID types.ID) ([]*trip.Trip, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []*trip.Trip
	for _, t := range s.w.trips {
		if t.DriverID == driverID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type bookingStore struct{ w *world }

func (s bookingStore) Create(_ context.Context, b *booking.Booking) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	cp := *b
	s.w.bookings[b.ID] = &cp
	return nil
}

func (s bookingStore) Get(_ context.Context, id types.ID) (*booking.Booking, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	b, ok := s.w.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s bookingStore) UpdateStatus(_ context.Context, id types.ID, from, to booking.Status, version int) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	b, ok := s.w.bookings[id]
	if !ok || b.Status != from || b.StatusVersion != version {
		return false, nil
	}
	b.Status = to
	b.StatusVersion++
	return true, nil
}

func (s bookingStore) ListByTrip(_ context.Context, tripID types.ID) ([]*booking.Booking, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []*booking.Booking
	for _, b := range s.w.bookings {
		if b.TripID == tripID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s bookingStore) ListByPassenger(_ context.Context, passengerID types.ID) ([]*booking.Booking, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []*booking.Booking
	for _, b := range s.w.bookings {
		if b.PassengerID == passengerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s bookingStore) ListExpirable(_ context.Context, _ time.Time) ([]types.ID, error) {
	return nil, nil
}

type ledgerView struct{ w *world }

func (l ledgerView) TryReserve(_ context.Context, tripID types.ID, seats int) error {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	t, ok := l.w.trips[tripID]
	if !ok || t.TotalSeats-t.SeatsAllocated < seats {
		return trip.ErrInsufficientCapacity
	}
	t.SeatsAllocated += seats
	return nil
}

func (l ledgerView) Release(_ context.Context, tripID types.ID, seats int) error {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	t, ok := l.w.trips[tripID]
	if !ok || t.SeatsAllocated < seats {
		return trip.ErrReleaseUnderflow
	}
	t.SeatsAllocated -= seats
	return nil
}

// flagsView serves both sides: the read interface the trip/booking machines
// check and the write interface the admin service drives.
type flagsView struct{ w *world }

func (f flagsView) IsSuspended(_ context.Context, id types.ID) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return f.w.suspended[id], nil
}

func (f flagsView) IsPublishBanned(_ context.Context, id types.ID) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return f.w.banned[id], nil
}

func (f flagsView) Suspend(_ context.Context, id types.ID) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.suspended[id] = true
	return nil
}

func (f flagsView) Unsuspend(_ context.Context, id types.ID) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	delete(f.w.suspended, id)
	return nil
}

func (f flagsView) SetPublishBan(_ context.Context, id types.ID, _ time.Time, _ string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.banned[id] = true
	return nil
}

func (f flagsView) ClearPublishBan(_ context.Context, id types.ID) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	delete(f.w.banned, id)
	return nil
}

type memAudit struct{ w *world }

func (a memAudit) Append(_ context.Context, rec *ModerationAction) error {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	cp := *rec
	a.w.actions = append(a.w.actions, &cp)
	return nil
}

func (a memAudit) ListByEntity(_ context.Context, entityType string, entityID types.ID) ([]*ModerationAction, error) {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	var out []*ModerationAction
	for _, rec := range a.w.actions {
		if rec.EntityType == entityType && rec.EntityID == entityID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

type stubRefunder struct {
	mu    sync.Mutex
	calls []payment.RefundCommand
}

func (r *stubRefunder) Refund(_ context.Context, cmd payment.RefundCommand) (*payment.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)
	return &payment.Transaction{ID: "tx_refund", Status: payment.TxSucceeded}, nil
}

type fixture struct {
	w        *world
	svc      *Service
	trips    *trip.Service
	bookings *booking.Service
	refunder *stubRefunder
}

func newFixture() *fixture {
	w := newWorld()
	flags := flagsView{w}
	tripSvc := trip.NewService(tripStore{w}, flags, nil)
	bookingSvc := booking.NewService(bookingStore{w}, tripStore{w}, ledgerView{w}, flags, nil)
	refunder := &stubRefunder{}
	svc := NewService(memAudit{w}, flags, tripSvc, bookingSvc, refunder)
	return &fixture{w: w, svc: svc, trips: tripSvc, bookings: bookingSvc, refunder: refunder}
}

func (f *fixture) seedTrip(id types.ID, status trip.Status, seats int) {
	f.w.trips[id] = &trip.Trip{
		ID: id, DriverID: "d1", TotalSeats: seats,
		Status: status, DepartureAt: time.Now().Add(time.Hour),
	}
}

func (f *fixture) seedBooking(id, tripID, passengerID types.ID, status booking.Status, seats int) {
	f.w.bookings[id] = &booking.Booking{
		ID: id, TripID: tripID, PassengerID: passengerID,
		Seats: seats, Status: status,
		PaymentMethod: booking.PaymentMethodNone,
		PaymentStatus: booking.PaymentStatusNone,
	}
	if status == booking.StatusAccepted {
		f.w.trips[tripID].SeatsAllocated += seats
	}
}

func (f *fixture) auditCount(t *testing.T, entityType string, entityID types.ID) int {
	t.Helper()
	list, err := f.svc.History(context.Background(), entityType, entityID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return len(list)
}

func TestReasonRequired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedTrip("t1", trip.StatusPublished, 3)
	f.seedBooking("b1", "t1", "p1", booking.StatusPending, 1)

	for _, reason := range []string{"", "meh", "  ab  "} {
		if err := f.svc.SuspendUser(ctx, SuspendCommand{UserID: "u1", ActorID: "a1", Reason: reason}); err != ErrReasonRequired {
			t.Errorf("suspend with reason %q: expected ErrReasonRequired, got %v", reason, err)
		}
		if err := f.svc.ForceCancelTrip(ctx, ForceCancelTripCommand{TripID: "t1", ActorID: "a1", Reason: reason}); err != ErrReasonRequired {
			t.Errorf("force-cancel with reason %q: expected ErrReasonRequired, got %v", reason, err)
		}
		if err := f.svc.CorrectBookingState(ctx, CorrectBookingCommand{
			BookingID: "b1", Target: booking.StatusDeclinedByAdmin, ActorID: "a1", Reason: reason,
		}); err != ErrReasonRequired {
			t.Errorf("correction with reason %q: expected ErrReasonRequired, got %v", reason, err)
		}
	}
	// Nothing moved, nothing logged.
	if n := len(f.w.actions); n != 0 {
		t.Fatalf("expected no audit records, got %d", n)
	}
}

func TestSuspendLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.svc.SuspendUser(ctx, SuspendCommand{UserID: "d9", ActorID: "a1", Reason: "repeated no-shows"}); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if !f.w.suspended["d9"] {
		t.Fatal("suspension flag not set")
	}

	// Suspension blocks new trips at the trip machine.
	if _, err := f.trips.Create(ctx, trip.CreateCommand{
		DriverID: "d9", Origin: "A", Destination: "B",
		DepartureAt: time.Now().Add(time.Hour), TotalSeats: 2,
	}); err != trip.ErrSuspended {
		t.Fatalf("trip create while suspended: expected ErrSuspended, got %v", err)
	}

	if err := f.svc.UnsuspendUser(ctx, SuspendCommand{UserID: "d9", ActorID: "a1", Reason: "appeal accepted"}); err != nil {
		t.Fatalf("unsuspend: %v", err)
	}
	if f.w.suspended["d9"] {
		t.Fatal("suspension flag not cleared")
	}

	if got := f.auditCount(t, "user", "d9"); got != 2 {
		t.Fatalf("expected 2 audit records for user, got %d", got)
	}
}

func TestPublishBanLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	until := time.Now().Add(48 * time.Hour)
	if err := f.svc.SetDriverPublishBan(ctx, PublishBanCommand{
		DriverID: "d1", ActorID: "a1", BanUntil: &until, Reason: "spam listings",
	}); err != nil {
		t.Fatalf("set ban: %v", err)
	}

	// Banned drivers can draft but not publish.
	id, err := f.trips.Create(ctx, trip.CreateCommand{
		DriverID: "d1", Origin: "A", Destination: "B",
		DepartureAt: time.Now().Add(time.Hour), TotalSeats: 2,
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if err := f.trips.Publish(ctx, trip.PublishCommand{TripID: id, DriverID: "d1"}); err != trip.ErrPublishBanned {
		t.Fatalf("publish while banned: expected ErrPublishBanned, got %v", err)
	}

	if err := f.svc.SetDriverPublishBan(ctx, PublishBanCommand{
		DriverID: "d1", ActorID: "a1", BanUntil: nil, Reason: "ban lifted early",
	}); err != nil {
		t.Fatalf("lift ban: %v", err)
	}
	if err := f.trips.Publish(ctx, trip.PublishCommand{TripID: id, DriverID: "d1"}); err != nil {
		t.Fatalf("publish after lift: %v", err)
	}

	list, err := f.svc.History(ctx, "user", "d1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(list) != 2 || list[0].Action != ActionPublishBan || list[1].Action != ActionPublishBanLifted {
		t.Fatalf("unexpected audit trail: %+v", list)
	}
}

func TestForceCancelCascade(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.seedTrip("t1", trip.StatusPublished, 4)
	f.seedBooking("b_pending", "t1", "p1", booking.StatusPending, 1)
	f.seedBooking("b_paid", "t1", "p2", booking.StatusAccepted, 2)
	f.seedBooking("b_declined", "t1", "p3", booking.StatusDeclined, 1)
	f.w.bookings["b_paid"].PaymentMethod = booking.PaymentMethodCard
	f.w.bookings["b_paid"].PaymentStatus = booking.PaymentStatusCompleted

	if err := f.svc.ForceCancelTrip(ctx, ForceCancelTripCommand{
		TripID: "t1", ActorID: "a1", Reason: "safety report",
	}); err != nil {
		t.Fatalf("force-cancel: %v", err)
	}

	if got := f.w.trips["t1"].Status; got != trip.StatusCanceled {
		t.Fatalf("trip status = %s, want canceled", got)
	}
	if got := f.w.bookings["b_pending"].Status; got != booking.StatusDeclinedAuto {
		t.Fatalf("pending booking = %s, want declined_auto", got)
	}
	if got := f.w.bookings["b_paid"].Status; got != booking.StatusCanceledByPlatform {
		t.Fatalf("accepted booking = %s, want canceled_by_platform", got)
	}
	if got := f.w.bookings["b_declined"].Status; got != booking.StatusDeclined {
		t.Fatalf("declined booking mutated to %s", got)
	}
	if got := f.w.trips["t1"].SeatsAllocated; got != 0 {
		t.Fatalf("seats allocated = %d after cascade, want 0", got)
	}

	// The settled card payment came back.
	if len(f.refunder.calls) != 1 || f.refunder.calls[0].BookingID != "b_paid" {
		t.Fatalf("refunder calls = %+v, want one for b_paid", f.refunder.calls)
	}

	// One audit record per mutated entity: the trip and the two live bookings.
	if got := f.auditCount(t, "trip", "t1"); got != 1 {
		t.Fatalf("trip audit records = %d, want 1", got)
	}
	if got := f.auditCount(t, "booking", "b_pending"); got != 1 {
		t.Fatalf("pending booking audit records = %d, want 1", got)
	}
	if got := f.auditCount(t, "booking", "b_paid"); got != 1 {
		t.Fatalf("paid booking audit records = %d, want 1", got)
	}
	if got := f.auditCount(t, "booking", "b_declined"); got != 0 {
		t.Fatalf("declined booking audit records = %d, want 0", got)
	}
}

func TestForceCancelWrongState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.seedTrip("t_draft", trip.StatusDraft, 2)
	f.seedTrip("t_done", trip.StatusCompleted, 2)

	for _, id := range []types.ID{"t_draft", "t_done"} {
		if err := f.svc.ForceCancelTrip(ctx, ForceCancelTripCommand{
			TripID: id, ActorID: "a1", Reason: "should not work",
		}); err != trip.ErrInvalidState {
			t.Errorf("force-cancel %s: expected ErrInvalidState, got %v", id, err)
		}
	}
	if err := f.svc.ForceCancelTrip(ctx, ForceCancelTripCommand{
		TripID: "missing", ActorID: "a1", Reason: "no such trip",
	}); err != trip.ErrNotFound {
		t.Fatalf("force-cancel missing trip: expected ErrNotFound, got %v", err)
	}
}

func TestCorrectBookingLegality(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.seedTrip("t1", trip.StatusPublished, 4)
	f.seedBooking("b_pending", "t1", "p1", booking.StatusPending, 1)
	f.seedBooking("b_accepted", "t1", "p2", booking.StatusAccepted, 2)

	// Wrong direction both ways round.
	if err := f.svc.CorrectBookingState(ctx, CorrectBookingCommand{
		BookingID: "b_pending", Target: booking.StatusCanceledByPlatform, ActorID: "a1", Reason: "wrong target",
	}); err != ErrInvalidTarget {
		t.Fatalf("platform-cancel a pending booking: expected ErrInvalidTarget, got %v", err)
	}
	if err := f.svc.CorrectBookingState(ctx, CorrectBookingCommand{
		BookingID: "b_accepted", Target: booking.StatusDeclinedByAdmin, ActorID: "a1", Reason: "wrong target",
	}); err != ErrInvalidTarget {
		t.Fatalf("admin-decline an accepted booking: expected ErrInvalidTarget, got %v", err)
	}
	// Only the two admin targets are correctable at all.
	if err := f.svc.CorrectBookingState(ctx, CorrectBookingCommand{
		BookingID: "b_pending", Target: booking.StatusAccepted, ActorID: "a1", Reason: "nice try",
	}); err != ErrInvalidTarget {
		t.Fatalf("correct to accepted: expected ErrInvalidTarget, got %v", err)
	}
	// A pending booking has nothing to refund.
	if err := f.svc.CorrectBookingState(ctx, CorrectBookingCommand{
		BookingID: "b_pending", Target: booking.StatusDeclinedByAdmin, ActorID: "a1",
		Reason: "bogus refund", Refund: true,
	}); err != ErrRefundInvalid {
		t.Fatalf("refund on pending decline: expected ErrRefundInvalid, got %v", err)
	}

	if err := f.svc.CorrectBookingState(ctx, CorrectBookingCommand{
		BookingID: "b_pending", Target: booking.StatusDeclinedByAdmin, ActorID: "a1", Reason: "created by mistake",
	}); err != nil {
		t.Fatalf("admin decline: %v", err)
	}
	if got := f.w.bookings["b_pending"].Status; got != booking.StatusDeclinedByAdmin {
		t.Fatalf("booking status = %s, want declined_by_admin", got)
	}

	if err := f.svc.CorrectBookingState(ctx, CorrectBookingCommand{
		BookingID: "b_accepted", Target: booking.StatusCanceledByPlatform, ActorID: "a1",
		Reason: "dispute resolved", Refund: true, RefundAmount: 300,
	}); err != nil {
		t.Fatalf("platform cancel: %v", err)
	}
	if got := f.w.bookings["b_accepted"].Status; got != booking.StatusCanceledByPlatform {
		t.Fatalf("booking status = %s, want canceled_by_platform", got)
	}
	if got := f.w.trips["t1"].SeatsAllocated; got != 0 {
		t.Fatalf("seats allocated = %d after correction, want 0", got)
	}
	if len(f.refunder.calls) != 1 || f.refunder.calls[0].Amount != 300 {
		t.Fatalf("refunder calls = %+v, want one partial refund of 300", f.refunder.calls)
	}

	if got := f.auditCount(t, "booking", "b_pending"); got != 1 {
		t.Fatalf("audit records for b_pending = %d, want 1", got)
	}
	if got := f.auditCount(t, "booking", "b_accepted"); got != 1 {
		t.Fatalf("audit records for b_accepted = %d, want 1", got)
	}
}
