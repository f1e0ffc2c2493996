package gamectx

import (
	"context"
	"encoding/json"
	"sync"
)

// Durable slot keys. The unified game+tryout record is canonical; the
// game-only key belongs to the retired first-generation record and is reserved
// so the two can never collide.
const (
	SlotKey = "gsds_ctx_v2"

	// LegacySlotKey is not read or written; migrations are out of scope.
	LegacySlotKey = "gsds_game_ctx_v1"
)

// Slot is the durable storage for the current record. All contexts in a
// deployment share one slot and all may write it; last writer wins, by design.
type Slot interface {
	// Load returns the stored record. Implementations return an empty
	// record, not an error, when the slot is missing or holds content that
	// does not parse.
	Load(ctx context.Context) (Record, error)
	// Save replaces the stored record.
	Save(ctx context.Context, rec Record) error
}

// Watcher is implemented by slots that can report writes made by other
// contexts. The store uses it as a second change feed alongside the bus.
type Watcher interface {
	// Watch delivers records written to the slot after the call, including
	// this context's own writes. The channel closes when ctx is done.
	Watch(ctx context.Context) (<-chan Record, error)
}

// MemorySlot is an in-process Slot for tests and single-context runs. It
// stores the serialized form so tests can plant corrupt content.
type MemorySlot struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (s *MemorySlot) Load(ctx context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.raw) == 0 {
		return Record{}, nil
	}
	var rec Record
	if err := json.Unmarshal(s.raw, &rec); err != nil {
		// Corrupt slot content degrades to an empty record.
		return Record{}, nil
	}
	return rec, nil
}

func (s *MemorySlot) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	return nil
}

// SetRaw plants arbitrary slot content, bypassing serialization.
func (s *MemorySlot) SetRaw(raw []byte) {
	s.mu.Lock()
	s.raw = append([]byte(nil), raw...)
	s.mu.Unlock()
}
