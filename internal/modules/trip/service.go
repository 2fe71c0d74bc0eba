// README: Trip service implements the trip lifecycle state machine.
package trip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"unipool/internal/notify"
	"unipool/internal/types"
)

// Store is the persistence surface the service needs; implemented by the pgx
// store and by in-memory fakes in tests.
type Store interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error)
}

// Flags answers moderation questions owned by the admin module.
type Flags interface {
	IsSuspended(ctx context.Context, userID types.ID) (bool, error)
	IsPublishBanned(ctx context.Context, driverID types.ID) (bool, error)
}

var (
	ErrNotFound      = errors.New("trip not found")
	ErrInvalidState  = errors.New("invalid trip state transition")
	ErrConflict      = errors.New("trip state conflict")
	ErrBadRequest    = errors.New("bad trip request")
	ErrNotTripDriver = errors.New("actor is not the trip driver")
	ErrPublishBanned = errors.New("driver is banned from publishing")
	ErrSuspended     = errors.New("user is suspended")
)

type Service struct {
	store Store
	flags Flags
	sink  notify.Sink
}

func NewService(store Store, flags Flags, sink notify.Sink) *Service {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Service{store: store, flags: flags, sink: sink}
}

type CreateCommand struct {
	DriverID           types.ID
	Origin             string
	Destination        string
	DepartureAt        time.Time
	EstimatedArrivalAt time.Time
	PricePerSeat       types.Money
	TotalSeats         int
	Notes              string
}

type PublishCommand struct {
	TripID   types.ID
	DriverID types.ID
}

type StartCommand struct {
	TripID   types.ID
	DriverID types.ID
}

type CompleteCommand struct {
	TripID   types.ID
	DriverID types.ID
}

type ForceCancelCommand struct {
	TripID  types.ID
	ActorID types.ID
	Reason  string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.DriverID == "" || cmd.Origin == "" || cmd.Destination == "" {
		return "", ErrBadRequest
	}
	if cmd.TotalSeats < 1 || cmd.DepartureAt.IsZero() || cmd.PricePerSeat.Amount < 0 {
		return "", ErrBadRequest
	}
	if s.flags != nil {
		suspended, err := s.flags.IsSuspended(ctx, cmd.DriverID)
		if err != nil {
			return "", err
		}
		if suspended {
			return "", ErrSuspended
		}
	}

	t := &Trip{
		ID:                 newID(),
		DriverID:           cmd.DriverID,
		Origin:             cmd.Origin,
		Destination:        cmd.Destination,
		DepartureAt:        cmd.DepartureAt,
		EstimatedArrivalAt: cmd.EstimatedArrivalAt,
		PricePerSeat:       cmd.PricePerSeat,
		TotalSeats:         cmd.TotalSeats,
		Status:             StatusDraft,
		Notes:              cmd.Notes,
		CreatedAt:          time.Now(),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", err
	}
	s.sink.Publish(notify.Event{
		EntityType: "trip", EntityID: t.ID,
		From: "none", To: string(StatusDraft),
		ActorType: "driver", ActorID: cmd.DriverID, At: t.CreatedAt,
	})
	return t.ID, nil
}

func (s *Service) Publish(ctx context.Context, cmd PublishCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.DriverID != cmd.DriverID {
		return ErrNotTripDriver
	}
	if s.flags != nil {
		banned, err := s.flags.IsPublishBanned(ctx, t.DriverID)
		if err != nil {
			return err
		}
		if banned {
			return ErrPublishBanned
		}
	}
	return s.transition(ctx, t, StatusPublished, "driver", cmd.DriverID, nil)
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.DriverID != cmd.DriverID {
		return ErrNotTripDriver
	}
	if t.Status != StatusPublished {
		return ErrInvalidState
	}
	return s.transition(ctx, t, StatusInProgress, "driver", cmd.DriverID, nil)
}

// Complete moves an in-progress trip to completed. The payment window derives
// from trip status, so no booking rows change here; the reconciler starts
// accepting confirmations as soon as the row reads completed.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.DriverID != cmd.DriverID {
		return ErrNotTripDriver
	}
	if t.Status != StatusInProgress {
		return ErrInvalidState
	}
	return s.transition(ctx, t, StatusCompleted, "driver", cmd.DriverID, nil)
}

// ForceCancel is the sole path out of in_progress other than completion. Only
// the admin module calls it; booking cascades and audit records are the
// caller's job.
func (s *Service) ForceCancel(ctx context.Context, cmd ForceCancelCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.Status != StatusPublished && t.Status != StatusInProgress {
		return ErrInvalidState
	}
	reason := cmd.Reason
	return s.transition(ctx, t, StatusCanceled, "admin", cmd.ActorID, &reason)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error) {
	return s.store.ListByDriver(ctx, driverID)
}

// transition performs the compare-and-swap against (status, status_version) so
// concurrent mutations of the same trip linearize; the loser sees ErrConflict.
func (s *Service) transition(ctx context.Context, t *Trip, to Status, actorType string, actorID types.ID, reason *string) error {
	if !CanTransition(t.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, to, t.StatusVersion, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.sink.Publish(notify.Event{
		EntityType: "trip", EntityID: t.ID,
		From: string(t.Status), To: string(to),
		ActorType: actorType, ActorID: actorID, At: time.Now(),
	})
	return nil
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
