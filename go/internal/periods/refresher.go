package periods

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameday/go/internal/gamectx"
)

const (
	// DefaultRefreshInterval re-reads the dictionary so sheet edits land
	// without a restart.
	DefaultRefreshInterval = 3 * time.Minute

	// tryoutChangeDebounce coalesces the per-keystroke record updates that a
	// bound input produces into one dictionary fetch.
	tryoutChangeDebounce = 200 * time.Millisecond
)

// Dictionary defines what the refresher needs from the period dictionary
// collaborator.
type Dictionary interface {
	TryoutPeriods(ctx context.Context, tryoutID string) ([]Period, error)
}

// ContextSource defines what the refresher needs from the record store.
type ContextSource interface {
	Read() gamectx.Record
	Subscribe(fn gamectx.Observer) func()
}

// Refresher keeps the scheduler's period list in step with the dictionary:
// on a fixed cadence, and shortly after the record's tryout identifier
// changes. Each successful fetch replaces the list wholesale and reschedules.
type Refresher struct {
	dict      Dictionary
	scheduler *Scheduler
	source    ContextSource
	clock     clockwork.Clock
	interval  time.Duration

	mu            sync.Mutex
	lastTryoutID  string
	debounceTimer clockwork.Timer
}

func NewRefresher(dict Dictionary, scheduler *Scheduler, source ContextSource, clock clockwork.Clock, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		dict:      dict,
		scheduler: scheduler,
		source:    source,
		clock:     clock,
		interval:  interval,
	}
}

// Refresh fetches the dictionary for the current tryout, reschedules, and
// seeds the active period so the in-progress period is not re-announced. A
// fetch failure keeps the prior schedule.
func (r *Refresher) Refresh(ctx context.Context) error {
	tryoutID := r.source.Read()[gamectx.FieldTryoutID]

	periods, err := r.dict.TryoutPeriods(ctx, tryoutID)
	if err != nil {
		log.Warn().Err(err).Str("tryout_id", tryoutID).Msg("period dictionary fetch failed, keeping prior schedule")
		return err
	}

	r.scheduler.Schedule(periods)
	r.scheduler.SeedActive()
	log.Info().Int("periods", len(periods)).Str("tryout_id", tryoutID).Msg("period dictionary refreshed")
	return nil
}

// Run refreshes immediately, then on the cadence, and whenever the record's
// tryout identifier changes (debounced). Blocks until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err == nil {
		r.rememberTryout()
	}

	unsubscribe := r.source.Subscribe(func(rec gamectx.Record) {
		r.onRecordChange(ctx, rec)
	})
	defer unsubscribe()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := r.Refresh(ctx); err == nil {
				r.rememberTryout()
			}
		}
	}
}

func (r *Refresher) onRecordChange(ctx context.Context, rec gamectx.Record) {
	tryoutID := rec[gamectx.FieldTryoutID]

	r.mu.Lock()
	defer r.mu.Unlock()
	if tryoutID == r.lastTryoutID {
		return
	}
	r.lastTryoutID = tryoutID

	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceTimer = r.clock.AfterFunc(tryoutChangeDebounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := r.Refresh(ctx); err != nil {
			log.Debug().Err(err).Msg("refresh after tryout change failed")
		}
	})
}

func (r *Refresher) rememberTryout() {
	tryoutID := r.source.Read()[gamectx.FieldTryoutID]
	r.mu.Lock()
	r.lastTryoutID = tryoutID
	r.mu.Unlock()
}
