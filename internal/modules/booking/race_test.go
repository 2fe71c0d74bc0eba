// README: Concurrency tests for booking transitions and seat accounting (run with -race).
package booking

import (
	"context"
	"sync"
	"testing"

	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

func TestConcurrentAcceptCapacity(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	// Three seats, three 2-seat requests: only one can ever fit.
	tripID := seedPublishedTrip(m, "d1", 3)
	ids := []types.ID{
		mustCreateBooking(t, svc, tripID, "p1", 2),
		mustCreateBooking(t, svc, tripID, "p2", 2),
		mustCreateBooking(t, svc, tripID, "p3", 2),
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(bid types.ID) {
			defer wg.Done()
			<-start
			errs <- svc.Accept(ctx, AcceptCommand{BookingID: bid, DriverID: "d1"})
		}(id)
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != trip.ErrInsufficientCapacity {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful accept, got %d", success)
	}
	assertAllocated(t, m, tripID, 2)

	accepted := 0
	for _, id := range ids {
		b, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get booking: %v", err)
		}
		switch b.Status {
		case StatusAccepted:
			accepted++
		case StatusPending:
		default:
			t.Fatalf("unexpected status %s", b.Status)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly 1 accepted booking, got %d", accepted)
	}
}

func TestConcurrentAcceptVsCancel(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	tripID := seedPublishedTrip(m, "d1", 3)
	bookingID := mustCreateBooking(t, svc, tripID, "p1", 2)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Accept(ctx, AcceptCommand{BookingID: bookingID, DriverID: "d1"})
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Cancel(ctx, CancelCommand{BookingID: bookingID, PassengerID: "p1"})
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && err != ErrBookingNotPending && err != ErrBookingNotAccepted {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Whoever won the compare-and-swap, the ledger must agree with the final
	// status: accepted holds its seats, canceled holds none.
	b, err := svc.Get(ctx, bookingID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	switch b.Status {
	case StatusAccepted:
		assertAllocated(t, m, tripID, 2)
	case StatusCanceledByPassenger:
		assertAllocated(t, m, tripID, 0)
	default:
		t.Fatalf("unexpected final status %s", b.Status)
	}
}

func TestConcurrentDuplicateAccept(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	tripID := seedPublishedTrip(m, "d1", 3)
	bookingID := mustCreateBooking(t, svc, tripID, "p1", 1)

	// With 3 seats free, all three attempts can transiently reserve, so the
	// only allowed failure is losing the compare-and-swap.
	const attempts = 3
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Accept(ctx, AcceptCommand{BookingID: bookingID, DriverID: "d1"})
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrBookingNotPending {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful accept, got %d", success)
	}
	// Losing accepts rolled their reservations back; only the winner's seat
	// remains allocated.
	assertAllocated(t, m, tripID, 1)
}
