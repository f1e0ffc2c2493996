package gamectx

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/gameday/go/internal/bus"
)

type recordingPusher struct {
	scheduled []Record
}

func (p *recordingPusher) SchedulePush(rec Record) {
	p.scheduled = append(p.scheduled, rec)
}

func newTestStore(t *testing.T, opts ...StoreOption) (*Store, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	opts = append([]StoreOption{WithClock(fc)}, opts...)
	return NewStore(NewMemorySlot(), nil, opts...), fc
}

func TestMergeHoldsAliasInvariantAcrossSequentialMerges(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	partials := []Record{
		{FieldTryoutID: "T1"},
		{FieldStationID: "S9"},
		{FieldGameID: "G2", FieldPlayID: "P4"},
	}
	for _, p := range partials {
		got := store.Merge(p, ProvenanceLocal)
		for _, pair := range aliasPairs {
			if got[pair[0]] != got[pair[1]] {
				t.Errorf("after merge %v: %s=%q != %s=%q", p, pair[0], got[pair[0]], pair[1], got[pair[1]])
			}
		}
	}
}

func TestMergeLastWriterWins(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	store.Merge(Record{FieldTryoutID: "T1"}, ProvenanceLocal)
	got := store.Merge(Record{FieldGameID: "G2"}, ProvenanceLocal)
	if got[FieldGameID] != "G2" {
		t.Errorf("game_id: got %q, want G2", got[FieldGameID])
	}
	// The last writer's side is native; the twin follows it.
	if got[FieldTryoutID] != "G2" {
		t.Errorf("tryout_id: got %q, want G2", got[FieldTryoutID])
	}
	if stored := store.Read(); stored[FieldGameID] != "G2" {
		t.Errorf("durable game_id: got %q, want G2", stored[FieldGameID])
	}
}

func TestMergeStampsUpdatedAtMonotonically(t *testing.T) {
	t.Parallel()
	store, fc := newTestStore(t)

	first := store.Merge(Record{FieldGameID: "G1"}, ProvenanceLocal)
	fc.Advance(250 * time.Millisecond)
	second := store.Merge(Record{FieldDriveID: "D1"}, ProvenanceLocal)

	if first.UpdatedAt() >= second.UpdatedAt() {
		t.Errorf("updated_at not increasing: %d then %d", first.UpdatedAt(), second.UpdatedAt())
	}
}

func TestServerProvenanceKeepsSuppliedTimestamp(t *testing.T) {
	t.Parallel()
	store, fc := newTestStore(t)

	store.Merge(Record{FieldGameID: "G1"}, ProvenanceLocal)

	// The server's clock may be behind ours; its timestamp is authoritative
	// for its own merges and must be accepted even when smaller.
	past := strconv.FormatInt(fc.Now().Add(-time.Hour).UnixMilli(), 10)
	got := store.Merge(Record{FieldGameID: "G2", FieldUpdatedAt: past}, ProvenanceServer)
	if got[FieldUpdatedAt] != past {
		t.Errorf("updated_at: got %q, want supplied %q", got[FieldUpdatedAt], past)
	}
}

func TestServerProvenanceWithoutTimestampStillStamps(t *testing.T) {
	t.Parallel()
	store, fc := newTestStore(t)

	got := store.Merge(Record{FieldGameID: "G1"}, ProvenanceServer)
	want := strconv.FormatInt(fc.Now().UnixMilli(), 10)
	if got[FieldUpdatedAt] != want {
		t.Errorf("updated_at: got %q, want %q", got[FieldUpdatedAt], want)
	}
}

func TestLocalMergeSchedulesPushServerMergeDoesNot(t *testing.T) {
	t.Parallel()
	pusher := &recordingPusher{}
	store, _ := newTestStore(t, WithPusher(pusher))

	store.Merge(Record{FieldGameID: "G1"}, ProvenanceLocal)
	if len(pusher.scheduled) != 1 {
		t.Fatalf("pushes after local merge: got %d, want 1", len(pusher.scheduled))
	}

	store.Merge(Record{FieldGameID: "G2"}, ProvenanceServer)
	if len(pusher.scheduled) != 1 {
		t.Errorf("server merge scheduled a push: got %d, want 1", len(pusher.scheduled))
	}
}

func TestClearResetsEveryKnownFieldAndKeepsInvariant(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	store.Merge(Record{FieldTryoutID: "T1", FieldPeriodCode: "P2", FieldGroupCode: "A"}, ProvenanceLocal)
	store.Clear()

	got := store.Read()
	for _, f := range KnownFields {
		v, ok := got[f]
		if !ok || v != "" {
			t.Errorf("field %s after clear: got %q (present=%v), want empty", f, v, ok)
		}
	}
	for _, pair := range aliasPairs {
		if got[pair[0]] != got[pair[1]] {
			t.Errorf("alias pair %v unequal after clear", pair)
		}
	}
}

func TestReadTreatsCorruptSlotAsEmpty(t *testing.T) {
	t.Parallel()
	slot := NewMemorySlot()
	slot.SetRaw([]byte("{not json"))
	store := NewStore(slot, nil)

	got := store.Read()
	if len(got) != 0 {
		t.Errorf("corrupt slot: got %v, want empty record", got)
	}
}

func TestSubscribeDeliversImmediatelyAndOnMerge(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	store.Merge(Record{FieldGameID: "G1"}, ProvenanceLocal)

	var seen []Record
	cancel := store.Subscribe(func(rec Record) { seen = append(seen, rec) })
	defer cancel()

	if len(seen) != 1 || seen[0][FieldGameID] != "G1" {
		t.Fatalf("initial delivery: got %v", seen)
	}

	store.Merge(Record{FieldGameID: "G2"}, ProvenanceLocal)
	if len(seen) != 2 || seen[1][FieldGameID] != "G2" {
		t.Errorf("merge delivery: got %v", seen)
	}

	cancel()
	store.Merge(Record{FieldGameID: "G3"}, ProvenanceLocal)
	if len(seen) != 2 {
		t.Errorf("delivery after unsubscribe: got %d records, want 2", len(seen))
	}
}

func TestObserverPanicDoesNotStopFanOut(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	var survived bool
	store.Subscribe(func(Record) { panic("bad observer") })
	store.Subscribe(func(Record) { survived = true })

	survived = false
	store.Merge(Record{FieldGameID: "G1"}, ProvenanceLocal)
	if !survived {
		t.Error("second observer did not run after first panicked")
	}
}

func TestRunFansOutBusRecordsToSubscribers(t *testing.T) {
	t.Parallel()
	hub := bus.NewMemoryHub()
	local := NewStore(NewMemorySlot(), hub.Endpoint())
	remote := NewStore(NewMemorySlot(), hub.Endpoint())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := local.Start(ctx); err != nil {
		t.Fatalf("start local: %v", err)
	}
	if err := remote.Start(ctx); err != nil {
		t.Fatalf("start remote: %v", err)
	}

	var got []Record
	remote.Subscribe(func(rec Record) { got = append(got, rec) })
	got = nil // drop the initial delivery

	local.Merge(Record{FieldGameID: "G1"}, ProvenanceLocal)

	if len(got) != 1 {
		t.Fatalf("bus deliveries: got %d, want 1", len(got))
	}
	want := Record{
		FieldGameID: "G1", FieldTryoutID: "G1",
		FieldUpdatedAt: got[0][FieldUpdatedAt],
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("bus record mismatch (-want +got):\n%s", diff)
	}
}

func TestSettersTrimInput(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	got := store.SetTryout("  T1  ")
	if got[FieldTryoutID] != "T1" {
		t.Errorf("tryout_id: got %q, want T1", got[FieldTryoutID])
	}
	if got[FieldGameID] != "T1" {
		t.Errorf("game_id alias: got %q, want T1", got[FieldGameID])
	}
}
