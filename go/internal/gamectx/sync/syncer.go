package sync

import (
	"context"
	"strconv"
	gosync "sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameday/go/clients/authority_client"
	"github.com/mcdev12/gameday/go/internal/gamectx"
)

const (
	// DefaultPushDelay coalesces rapid sequential edits (keystrokes) into a
	// single outbound push.
	DefaultPushDelay = 150 * time.Millisecond

	// MinPollInterval is the floor for the poll loop; smaller requests are
	// clamped, not rejected.
	MinPollInterval = 300 * time.Millisecond

	// DefaultPollInterval matches the authority's expected read cadence.
	DefaultPollInterval = time.Second
)

// Authority defines what the syncer needs from the remote authority client.
type Authority interface {
	GetContext(ctx context.Context) (*authority_client.ContextPayload, error)
	SetContext(ctx context.Context, gameID, driveID, playID string) error
}

// Store defines what the syncer needs from the record store.
type Store interface {
	Merge(partial gamectx.Record, prov gamectx.Provenance) gamectx.Record
}

// Syncer keeps the local record and the remote authority eventually
// consistent: it pulls on an interval, gated by a monotonic watermark of the
// last applied server timestamp, and pushes local changes after a short
// debounce. Pull applies merges with server provenance, which suppresses the
// re-push that would otherwise ping-pong between the two sides forever.
type Syncer struct {
	authority Authority
	store     Store
	clock     clockwork.Clock
	pushDelay time.Duration

	mu        gosync.Mutex
	watermark int64
	pending   gamectx.Record
	pushTimer clockwork.Timer

	pollMu     gosync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock substitutes the clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// WithPushDelay overrides the push debounce window.
func WithPushDelay(d time.Duration) Option {
	return func(s *Syncer) { s.pushDelay = d }
}

func NewSyncer(authority Authority, store Store, opts ...Option) *Syncer {
	s := &Syncer{
		authority: authority,
		store:     store,
		clock:     clockwork.NewRealClock(),
		pushDelay: DefaultPushDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pull reads the authority's record. Any transport or parse failure degrades
// to nil; the caller keeps its prior state.
func (s *Syncer) Pull(ctx context.Context) *authority_client.ContextPayload {
	payload, err := s.authority.GetContext(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("context pull failed")
		return nil
	}
	return payload
}

// Push writes the three aliased identifiers to the authority, preferring the
// tryout-side values. Failures are logged and swallowed.
func (s *Syncer) Push(ctx context.Context, rec gamectx.Record) {
	gameID := firstNonEmpty(rec[gamectx.FieldTryoutID], rec[gamectx.FieldGameID])
	driveID := firstNonEmpty(rec[gamectx.FieldStationID], rec[gamectx.FieldDriveID])
	playID := firstNonEmpty(rec[gamectx.FieldRepID], rec[gamectx.FieldPlayID])
	if err := s.authority.SetContext(ctx, gameID, driveID, playID); err != nil {
		log.Warn().Err(err).Msg("context push failed")
		return
	}
	log.Debug().
		Str("game_id", gameID).
		Str("drive_id", driveID).
		Str("play_id", playID).
		Msg("pushed context to authority")
}

// PollOnce pulls and, when the server timestamp is strictly newer than the
// watermark, applies a server-provenance merge and advances the watermark. A
// stale or repeated timestamp is a no-op, so out-of-order reads can never
// clobber newer local state.
func (s *Syncer) PollOnce(ctx context.Context) {
	payload := s.Pull(ctx)
	if payload == nil {
		return
	}

	s.mu.Lock()
	if payload.TS <= s.watermark {
		s.mu.Unlock()
		return
	}
	s.watermark = payload.TS
	s.mu.Unlock()

	ts := strconv.FormatInt(payload.TS, 10)
	s.store.Merge(gamectx.Record{
		gamectx.FieldGameID:  payload.GameID,
		gamectx.FieldDriveID: payload.DriveID,
		gamectx.FieldPlayID:  payload.PlayID,
		// The authority only speaks the game scheme; mirror explicitly so
		// the merge treats both sides as written by this server read.
		gamectx.FieldTryoutID:  payload.GameID,
		gamectx.FieldStationID: payload.DriveID,
		gamectx.FieldRepID:     payload.PlayID,
		gamectx.FieldUpdatedAt: ts,
	}, gamectx.ProvenanceServer)

	log.Debug().Int64("server_ts", payload.TS).Msg("applied server context")
}

// Watermark returns the highest server timestamp applied so far.
func (s *Syncer) Watermark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// SchedulePush debounces an outbound push of rec. Later calls within the
// window replace the pending record and restart the timer, so a burst of
// edits produces one push carrying the final state.
func (s *Syncer) SchedulePush(rec gamectx.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = rec.Clone()
	if s.pushTimer != nil {
		s.pushTimer.Stop()
	}
	s.pushTimer = s.clock.AfterFunc(s.pushDelay, s.flushPush)
}

func (s *Syncer) flushPush() {
	s.mu.Lock()
	rec := s.pending
	s.pending = nil
	s.pushTimer = nil
	s.mu.Unlock()
	if rec == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), authorityCallBudget)
	defer cancel()
	s.Push(ctx, rec)
}

const authorityCallBudget = 10 * time.Second

// StartPolling arms the recurring poll with an immediate first call. Absurdly
// small intervals are clamped to MinPollInterval. A second call replaces the
// running loop.
func (s *Syncer) StartPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if interval < MinPollInterval {
		log.Warn().
			Dur("requested", interval).
			Dur("clamped", MinPollInterval).
			Msg("poll interval below floor, clamping")
		interval = MinPollInterval
	}

	s.pollMu.Lock()
	if s.pollCancel != nil {
		s.pollCancel()
		<-s.pollDone
	}
	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.pollCancel = cancel
	s.pollDone = done
	s.pollMu.Unlock()

	// Each pull runs on its own deadline, detached from pollCtx: stopping the
	// loop must not cancel an already-dispatched pull.
	pollDetached := func() {
		callCtx, cancelCall := context.WithTimeout(context.Background(), authorityCallBudget)
		defer cancelCall()
		s.PollOnce(callCtx)
	}

	go func() {
		defer close(done)
		pollDetached()
		ticker := s.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.Chan():
				pollDetached()
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("server context polling started")
}

// StopPolling disarms the poll loop. An already-dispatched pull is not
// cancelled; its result still passes through the watermark gate.
func (s *Syncer) StopPolling() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.pollCancel != nil {
		s.pollCancel()
		<-s.pollDone
		s.pollCancel = nil
		s.pollDone = nil
		log.Info().Msg("server context polling stopped")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
