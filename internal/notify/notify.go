// README: Transition event sink; fire-and-forget, failures never roll back transitions.
package notify

import (
	"time"

	"unipool/internal/logger"
	"unipool/internal/types"
)

// Event describes one state transition of a trip, booking, or payment.
type Event struct {
	EntityType string
	EntityID   types.ID
	From       string
	To         string
	ActorType  string
	ActorID    types.ID
	At         time.Time
}

// Sink receives one event per state transition. Implementations must not
// block the caller and must swallow their own errors.
type Sink interface {
	Publish(e Event)
}

// LogSink writes every event to the structured log.
type LogSink struct{}

func (LogSink) Publish(e Event) {
	logger.L.WithFields(map[string]any{
		"entity": e.EntityType,
		"id":     string(e.EntityID),
		"from":   e.From,
		"to":     e.To,
		"actor":  e.ActorType,
	}).Info("state transition")
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

// NopSink discards events; used as the default when no sink is wired.
type NopSink struct{}

func (NopSink) Publish(Event) {}
