// Package diagnostics is the machine-readable diagnostic-record bus
// described in spec §7 ("anything persistently wrong is surfaced as a
// diagnostic record, visible to UI"). It fans records out to any
// number of subscribers (the httpapi websocket feed, tests, ...) the
// same way the teacher's WebServer.broadcast channel fans status
// updates out to connected clients (scheduler/server.go).
package diagnostics

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/rs/zerolog"
)

// Record is one diagnostic event: an ID, a timestamp, a component, a
// taxonomy Kind (spec §7) and a human message.
type Record struct {
	ID        string
	Time      time.Time
	Component string
	Kind      model.ErrorKind
	Message   string
}

// Bus fans diagnostic records out to subscribers and mirrors every
// record to a structured logger.
type Bus struct {
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[chan Record]struct{}
}

// NewBus creates a diagnostics bus that logs through log.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log.With().Str("module", "diagnostics").Logger(), subs: make(map[chan Record]struct{})}
}

// Subscribe registers a new channel for records; call the returned
// func to unsubscribe. The channel is buffered so a slow consumer
// (e.g. a websocket client) never blocks publishers.
func (b *Bus) Subscribe() (ch <-chan Record, unsubscribe func()) {
	c := make(chan Record, 64)
	b.mu.Lock()
	b.subs[c] = struct{}{}
	b.mu.Unlock()

	return c, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[c]; ok {
			delete(b.subs, c)
			close(c)
		}
	}
}

// Publish emits a diagnostic record: it logs at the appropriate level
// and forwards a copy to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking.
func (b *Bus) Publish(component string, kind model.ErrorKind, message string) Record {
	rec := Record{
		ID:        uuid.NewString(),
		Time:      time.Now().UTC(),
		Component: component,
		Kind:      kind,
		Message:   message,
	}

	event := b.log.Warn()
	switch kind {
	case model.KindConfigInvalid, model.KindInfeasible:
		event = b.log.Error()
	}
	event.Str("kind", string(kind)).Str("component", component).Str("record_id", rec.ID).Msg(message)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.subs {
		select {
		case c <- rec:
		default:
		}
	}
	return rec
}
