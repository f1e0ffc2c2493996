package gamectx

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameday/go/internal/bus"
)

// Provenance tags a merge with where it originated. Server-provenance merges
// never re-trigger a push; without that, a poll applying a server value would
// push it straight back and the two sides would ping-pong forever.
type Provenance int

const (
	ProvenanceLocal Provenance = iota
	ProvenanceServer
)

// Observer receives the full record after every local or remote change.
type Observer func(Record)

// Pusher schedules an outbound push of the record to the remote authority.
// A nil pusher disables remote sync.
type Pusher interface {
	SchedulePush(rec Record)
}

// Store is the replicated record store. Within one context merges are
// serialized by mutex; across contexts the only coordination is last writer
// wins on the shared slot, which the design accepts as correct.
type Store struct {
	slot   Slot
	bus    bus.Bus
	clock  clockwork.Clock
	pusher Pusher

	mu sync.Mutex // serializes merges

	subsMu  sync.Mutex
	subs    map[int]Observer
	nextSub int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock substitutes the clock, for tests.
func WithClock(c clockwork.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithPusher enables remote sync: every local-provenance merge schedules a
// debounced push of the resulting record.
func WithPusher(p Pusher) StoreOption {
	return func(s *Store) { s.pusher = p }
}

// NewStore creates a store over the given durable slot and fan-out bus.
// b may be nil for single-context runs.
func NewStore(slot Slot, b bus.Bus, opts ...StoreOption) *Store {
	s := &Store{
		slot:  slot,
		bus:   b,
		clock: clockwork.NewRealClock(),
		subs:  make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPusher attaches the pusher after construction. The syncer is built over
// the store, so one of the two has to be wired late.
func (s *Store) SetPusher(p Pusher) {
	s.mu.Lock()
	s.pusher = p
	s.mu.Unlock()
}

// Read returns the current durable record. It never fails: a missing or
// unreadable slot reads as empty.
func (s *Store) Read() Record {
	rec, err := s.slot.Load(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("slot load failed, reading as empty")
		return Record{}
	}
	return rec
}

// Merge overlays partial onto the current record (partial's keys win), applies
// the bidirectional aliasing invariant, stamps updated_at unless a
// server-provenance caller already supplied one, persists the result, fans it
// out to subscribers and the bus, and returns it. A local-provenance merge
// also schedules a debounced push when remote sync is enabled.
func (s *Store) Merge(partial Record, prov Provenance) Record {
	s.mu.Lock()
	next := s.Read().Clone()
	for k, v := range partial {
		next[k] = v
	}
	next.applyAliases(partial)
	if !(prov == ProvenanceServer && partial.Has(FieldUpdatedAt)) {
		next.stamp(s.clock.Now())
	}
	if err := s.slot.Save(context.Background(), next); err != nil {
		// Mid-session write failures are not recoverable; keep serving the
		// merged state to this context and let a later write repair the slot.
		log.Error().Err(err).Msg("slot save failed")
	}
	pusher := s.pusher
	s.mu.Unlock()

	s.publish(next)
	s.notify(next)
	if pusher != nil && prov == ProvenanceLocal {
		pusher.SchedulePush(next)
	}
	return next
}

// Clear resets every known field to the empty string. The aliasing invariant
// holds trivially afterwards.
func (s *Store) Clear() Record {
	partial := make(Record, len(KnownFields))
	for _, f := range KnownFields {
		partial[f] = ""
	}
	return s.Merge(partial, ProvenanceLocal)
}

// Subscribe registers an observer, invokes it immediately with the current
// record, and returns a deregistration function. Observers are independent:
// one panicking does not stop the others.
func (s *Store) Subscribe(fn Observer) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	invoke(fn, s.Read())

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Start attaches the inbound change feeds: the bus and, when the slot supports
// watching, the slot's own change feed. Records written by other contexts are
// delivered to subscribers. Both feeds may report the same write; observers
// see the full record each time and are expected to apply it idempotently.
// Feeds detach when ctx is done.
func (s *Store) Start(ctx context.Context) error {
	if s.bus != nil {
		cancel, err := s.bus.Subscribe(func(env bus.Envelope) {
			var rec Record
			if err := json.Unmarshal(env.Data, &rec); err != nil {
				log.Warn().Err(err).Msg("dropping malformed record from bus")
				return
			}
			s.notify(rec)
		})
		if err != nil {
			return err
		}
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	if w, ok := s.slot.(Watcher); ok {
		updates, err := w.Watch(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("slot watch unavailable, relying on bus only")
		} else {
			go func() {
				for rec := range updates {
					s.notify(rec)
				}
			}()
		}
	}
	return nil
}

// Run is Start plus blocking until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Setter conveniences used by the UI surfaces. Values are trimmed.

func (s *Store) SetGame(id string) Record   { return s.setField(FieldGameID, id) }
func (s *Store) SetDrive(id string) Record  { return s.setField(FieldDriveID, id) }
func (s *Store) SetPlay(id string) Record   { return s.setField(FieldPlayID, id) }
func (s *Store) SetTryout(id string) Record { return s.setField(FieldTryoutID, id) }
func (s *Store) SetStation(id string) Record {
	return s.setField(FieldStationID, id)
}
func (s *Store) SetRep(id string) Record      { return s.setField(FieldRepID, id) }
func (s *Store) SetGroup(code string) Record  { return s.setField(FieldGroupCode, code) }
func (s *Store) SetPeriod(code string) Record { return s.setField(FieldPeriodCode, code) }

func (s *Store) setField(field, value string) Record {
	return s.Merge(Record{field: strings.TrimSpace(value)}, ProvenanceLocal)
}

func (s *Store) publish(rec Record) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(rec); err != nil {
		log.Warn().Err(err).Msg("record fan-out publish failed")
	}
}

func (s *Store) notify(rec Record) {
	s.subsMu.Lock()
	observers := make([]Observer, 0, len(s.subs))
	for _, fn := range s.subs {
		observers = append(observers, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range observers {
		invoke(fn, rec.Clone())
	}
}

// invoke isolates observer failures so one bad callback cannot abort the
// fan-out to the rest.
func invoke(fn Observer, rec Record) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("context observer panicked")
		}
	}()
	fn(rec)
}
