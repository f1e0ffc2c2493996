package periods

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/gameday/go/internal/gamectx"
)

type fakeDictionary struct {
	mu      sync.Mutex
	periods []Period
	err     error
	calls   []string
}

func (d *fakeDictionary) TryoutPeriods(_ context.Context, tryoutID string) ([]Period, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, tryoutID)
	if d.err != nil {
		return nil, d.err
	}
	return append([]Period(nil), d.periods...), nil
}

func (d *fakeDictionary) callsSoFar() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDictionary) set(periods []Period, err error) {
	d.mu.Lock()
	d.periods = periods
	d.err = err
	d.mu.Unlock()
}

type fakeSource struct {
	mu        sync.Mutex
	rec       gamectx.Record
	observers []gamectx.Observer
}

func (s *fakeSource) Read() gamectx.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

func (s *fakeSource) Subscribe(fn gamectx.Observer) func() {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
	return func() {}
}

func (s *fakeSource) update(rec gamectx.Record) {
	s.mu.Lock()
	s.rec = rec
	observers := append([]gamectx.Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(rec.Clone())
	}
}

func TestRefreshReplacesScheduleAndSeedsActive(t *testing.T) {
	t.Parallel()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC))
	sched := NewScheduler(fc, NewReferenceClock(fc, "UTC"), &recordingNotifier{})
	defer sched.Stop()

	dict := &fakeDictionary{periods: []Period{{Code: "A", Start: "09:00", End: "10:00"}}}
	source := &fakeSource{rec: gamectx.Record{gamectx.FieldTryoutID: "T7"}}
	r := NewRefresher(dict, sched, source, fc, 0)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := dict.callsSoFar(); len(got) != 1 || got[0] != "T7" {
		t.Errorf("dictionary calls: got %v, want [T7]", got)
	}
	if got := len(sched.Periods()); got != 1 {
		t.Errorf("scheduled periods: got %d, want 1", got)
	}
	if got := sched.ActiveCode(); got != "A" {
		t.Errorf("seeded active code: got %q, want A", got)
	}
}

func TestRefreshFailureKeepsPriorSchedule(t *testing.T) {
	t.Parallel()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC))
	sched := NewScheduler(fc, NewReferenceClock(fc, "UTC"), &recordingNotifier{})
	defer sched.Stop()

	dict := &fakeDictionary{periods: []Period{{Code: "A", Start: "09:00", End: "10:00"}}}
	source := &fakeSource{rec: gamectx.Record{}}
	r := NewRefresher(dict, sched, source, fc, 0)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	dict.set(nil, errors.New("sheet unreachable"))
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("refresh after dictionary failure: got nil error")
	}
	if got := len(sched.Periods()); got != 1 {
		t.Errorf("periods after failed refresh: got %d, want prior 1", got)
	}
	if got := sched.ActiveCode(); got != "A" {
		t.Errorf("active code after failed refresh: got %q, want A", got)
	}
}

func TestRunRefetchesAfterTryoutChangeDebounced(t *testing.T) {
	t.Parallel()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC))
	sched := NewScheduler(fc, NewReferenceClock(fc, "UTC"), &recordingNotifier{})
	defer sched.Stop()

	dict := &fakeDictionary{}
	source := &fakeSource{rec: gamectx.Record{gamectx.FieldTryoutID: "T1"}}
	r := NewRefresher(dict, sched, source, fc, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return len(dict.callsSoFar()) == 1 })

	// Two rapid tryout changes collapse into one debounced fetch for the
	// final value.
	source.update(gamectx.Record{gamectx.FieldTryoutID: "T2"})
	source.update(gamectx.Record{gamectx.FieldTryoutID: "T3"})
	fc.Advance(tryoutChangeDebounce)

	waitFor(t, func() bool { return len(dict.callsSoFar()) == 2 })
	if calls := dict.callsSoFar(); calls[1] != "T3" {
		t.Errorf("debounced fetch tryout: got %q, want T3", calls[1])
	}

	// Republishing the same tryout does not refetch.
	source.update(gamectx.Record{gamectx.FieldTryoutID: "T3"})
	fc.Advance(tryoutChangeDebounce)
	time.Sleep(10 * time.Millisecond)
	if got := len(dict.callsSoFar()); got != 2 {
		t.Errorf("calls after no-op update: got %d, want 2", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
