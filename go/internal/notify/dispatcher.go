package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameday/go/internal/bus"
)

// DefaultDuration keeps a notice on the surface before it is dismissed.
const DefaultDuration = 10 * time.Second

// dedupeWindow is how long a shown notice suppresses identical arrivals.
// Keys are quantized to whole seconds so the window is effectively one
// second, matching the relay suppression.
const dedupeWindow = 2 * time.Second

// noticePayload is the wire shape relayed between processes.
type noticePayload struct {
	Text string `json:"text"`
}

// Dispatcher shows notices on a Surface and relays locally-originated ones
// to the notice bus. Identical notices within the same wall-clock second are
// shown once over the bus: the local surface always shows, the relay is
// suppressed for duplicates. The dismissal timer resets on every show rather
// than stacking, so a burst of notices yields one dismissal.
type Dispatcher struct {
	surface  Surface
	bus      bus.Bus
	clock    clockwork.Clock
	duration time.Duration

	mu        sync.Mutex
	seen      map[string]time.Time
	hideTimer clockwork.Timer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherClock substitutes the wall clock, for tests.
func WithDispatcherClock(clock clockwork.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = clock }
}

// WithDuration overrides how long a notice stays up.
func WithDuration(duration time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if duration > 0 {
			d.duration = duration
		}
	}
}

// NewDispatcher builds a dispatcher over the given surface. noticeBus may be
// nil, in which case notices stay local.
func NewDispatcher(surface Surface, noticeBus bus.Bus, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		surface:  surface,
		bus:      noticeBus,
		clock:    clockwork.NewRealClock(),
		duration: DefaultDuration,
		seen:     map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Show puts text on the surface and (re)arms the dismissal timer. A show
// while a previous notice is still up replaces it and pushes the dismissal
// out; dismissal timers never stack.
func (d *Dispatcher) Show(text string) {
	d.mu.Lock()
	if d.hideTimer != nil {
		d.hideTimer.Stop()
	}
	d.hideTimer = d.clock.AfterFunc(d.duration, d.surface.Hide)
	d.mu.Unlock()

	d.surface.Show(text)
}

// Broadcast shows msg locally and relays it to the notice bus unless an
// identical message was already broadcast or received in the same second.
// The local show is unconditional so the originator always sees its own
// notice even when the relay is suppressed.
func (d *Dispatcher) Broadcast(msg string) {
	fresh := d.markSeen(msg)
	d.Show(msg)

	if !fresh || d.bus == nil {
		return
	}
	if err := d.bus.Publish(noticePayload{Text: msg}); err != nil {
		log.Warn().Err(err).Msg("notice relay failed")
	}
}

// Start subscribes to the notice bus and shows inbound notices, applying the
// same one-second suppression so a notice both computed locally and relayed
// by a peer surfaces once. The subscription is dropped when ctx is done.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.bus == nil {
		return nil
	}
	unsubscribe, err := d.bus.Subscribe(func(env bus.Envelope) {
		var payload noticePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Warn().Err(err).Msg("malformed notice envelope, dropping")
			return
		}
		if payload.Text == "" {
			return
		}
		if !d.markSeen(payload.Text) {
			log.Debug().Str("text", payload.Text).Msg("duplicate notice suppressed")
			return
		}
		d.Show(payload.Text)
	})
	if err != nil {
		return fmt.Errorf("subscribe to notice bus: %w", err)
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return nil
}

// Run is Start and block.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// markSeen records msg under its second-quantized key and reports whether
// the key was new. Stale keys are pruned as a side effect.
func (d *Dispatcher) markSeen(msg string) bool {
	now := d.clock.Now()
	key := fmt.Sprintf("%s|%d", msg, now.Unix())

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, at := range d.seen {
		if now.Sub(at) > dedupeWindow {
			delete(d.seen, k)
		}
	}
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = now
	return true
}
