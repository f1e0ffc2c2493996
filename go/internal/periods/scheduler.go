package periods

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Notifier is where fired announcements go. In production this is the
// notification dispatcher's Broadcast.
type Notifier interface {
	Broadcast(msg string)
}

// Announcement stages armed ahead of each period start. Stages already in the
// past at scheduling time are skipped, not fired late.
var stages = []struct {
	offset time.Duration
	suffix string // empty means the start announcement itself
}{
	{5 * time.Minute, "starts in 5 minutes"},
	{time.Minute, "starts in 1 minute"},
	{0, ""},
}

// Scheduler arms multi-stage announcement timers for a list of periods and
// tracks which period is active now. Every observer runs the same timers
// independently; cross-context de-duplication happens downstream in the
// dispatcher.
type Scheduler struct {
	clock    clockwork.Clock
	ref      *ReferenceClock
	notifier Notifier

	mu                sync.Mutex
	timers            []clockwork.Timer
	passCancel        context.CancelFunc
	periods           []Period
	lastActiveCode    string
	lastCheckedMinute int
}

func NewScheduler(clock clockwork.Clock, ref *ReferenceClock, notifier Notifier) *Scheduler {
	return &Scheduler{
		clock:             clock,
		ref:               ref,
		notifier:          notifier,
		lastCheckedMinute: -1,
	}
}

// Schedule replaces the armed timer set: every handle from the previous pass
// is cancelled first, then three timers per period are armed relative to the
// period's next start occurrence, plus one rearm timer for shortly after the
// next local midnight. Periods whose start time does not parse are skipped.
func (s *Scheduler) Schedule(periods []Period) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelPassLocked()
	s.periods = append([]Period(nil), periods...)

	passCtx, cancel := context.WithCancel(context.Background())
	s.passCancel = cancel

	now := s.ref.Now()
	armed := 0
	for _, p := range periods {
		startMinutes, ok := ParseTimeOfDay(p.Start)
		if !ok {
			log.Warn().Str("period", p.Code).Str("start", p.Start).Msg("unparsable period start, skipping")
			continue
		}
		nextStart := NextOccurrence(now, startMinutes)
		for _, stage := range stages {
			at := nextStart.Add(-stage.offset)
			if !at.After(now) {
				continue
			}
			msg := fmt.Sprintf("Now entering %s — %s", p.Code, p.DisplayLabel())
			isStart := stage.suffix == ""
			if !isStart {
				msg = fmt.Sprintf("%s — %s %s", p.Code, p.DisplayLabel(), stage.suffix)
			}
			s.armLocked(passCtx, at.Sub(now), msg, isStart, p.Code)
			armed++
		}
	}

	rearmIn := nextMidnight(now).Sub(now)
	s.armRearmLocked(passCtx, rearmIn)

	log.Info().
		Int("periods", len(periods)).
		Int("timers", armed).
		Dur("rearm_in", rearmIn).
		Msg("period announcements scheduled")
}

// CheckTransition recomputes the active period and announces "Now in ..."
// when it changed by code since the last check. Leaving every period clears
// the recorded state silently. At most one check does work per wall-clock
// minute.
func (s *Scheduler) CheckTransition() {
	now := s.ref.Now()
	minute := MinuteOfDay(now)

	s.mu.Lock()
	if minute == s.lastCheckedMinute {
		s.mu.Unlock()
		return
	}
	s.lastCheckedMinute = minute

	active := DetectActive(s.periods, now)
	var msg string
	switch {
	case active != nil && active.Code != s.lastActiveCode:
		msg = fmt.Sprintf("Now in %s — %s", active.Code, active.DisplayLabel())
		s.lastActiveCode = active.Code
	case active == nil:
		s.lastActiveCode = ""
	}
	s.mu.Unlock()

	if msg != "" {
		s.notifier.Broadcast(msg)
	}
}

// SeedActive records the currently active period without announcing it, so a
// context joining mid-period does not greet its users with a transition that
// happened an hour ago.
func (s *Scheduler) SeedActive() {
	now := s.ref.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if active := DetectActive(s.periods, now); active != nil {
		s.lastActiveCode = active.Code
	} else {
		s.lastActiveCode = ""
	}
}

// ActiveCode returns the code recorded by the last transition check or seed.
func (s *Scheduler) ActiveCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveCode
}

// Periods returns a snapshot of the current period list.
func (s *Scheduler) Periods() []Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Period(nil), s.periods...)
}

// Run drives transition checks until ctx is done: every 30 seconds, plus a
// check aligned to the top of each minute so drift between observers cannot
// push an announcement into the next minute.
func (s *Scheduler) Run(ctx context.Context) {
	tick := s.clock.NewTicker(30 * time.Second)
	defer tick.Stop()

	now := s.ref.Now()
	untilNextMinute := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	minuteTimer := s.clock.NewTimer(untilNextMinute)
	defer minuteTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.Chan():
			s.CheckTransition()
		case <-minuteTimer.Chan():
			s.CheckTransition()
			minuteTimer.Reset(time.Minute)
		}
	}
}

// Stop cancels every armed handle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPassLocked()
}

func (s *Scheduler) armLocked(passCtx context.Context, d time.Duration, msg string, isStart bool, code string) {
	timer := s.clock.NewTimer(d)
	s.timers = append(s.timers, timer)

	go func() {
		select {
		case <-timer.Chan():
			if isStart {
				s.mu.Lock()
				s.lastActiveCode = code
				s.mu.Unlock()
			}
			s.notifier.Broadcast(msg)
		case <-passCtx.Done():
			stopAndDrainTimer(timer)
		}
	}()
}

func (s *Scheduler) armRearmLocked(passCtx context.Context, d time.Duration) {
	timer := s.clock.NewTimer(d)
	s.timers = append(s.timers, timer)

	go func() {
		select {
		case <-timer.Chan():
			log.Debug().Msg("midnight rearm firing")
			s.Schedule(s.Periods())
		case <-passCtx.Done():
			stopAndDrainTimer(timer)
		}
	}()
}

func (s *Scheduler) cancelPassLocked() {
	if s.passCancel != nil {
		s.passCancel()
		s.passCancel = nil
	}
	s.timers = nil
}

// stopAndDrainTimer safely stops a timer and drains its channel so the
// goroutine that owned it cannot leak a pending tick.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
