package gamectx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// DefaultKVBucket is the JetStream bucket holding the shared slot.
const DefaultKVBucket = "GSDS_CTX"

// KVSlot stores the record in a JetStream key-value bucket so every context in
// the deployment reads and writes the same durable slot. Only the latest value
// is retained.
type KVSlot struct {
	kv  jetstream.KeyValue
	key string
}

// NewKVSlot binds to the bucket, creating it with history depth 1 when absent.
func NewKVSlot(ctx context.Context, js jetstream.JetStream, bucket, key string) (*KVSlot, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "shared game-day context slot",
			History:     1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("bind KV bucket %s: %w", bucket, err)
	}
	return &KVSlot{kv: kv, key: key}, nil
}

func (s *KVSlot) Load(ctx context.Context) (Record, error) {
	entry, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	var rec Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("slot content does not parse, treating as empty")
		return Record{}, nil
	}
	return rec, nil
}

func (s *KVSlot) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.kv.Put(ctx, s.key, raw); err != nil {
		return fmt.Errorf("put %s: %w", s.key, err)
	}
	return nil
}

// Watch implements Watcher over the bucket's change feed. Unparsable values
// are skipped, not surfaced.
func (s *KVSlot) Watch(ctx context.Context) (<-chan Record, error) {
	watcher, err := s.kv.Watch(ctx, s.key, jetstream.IgnoreDeletes(), jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", s.key, err)
	}
	out := make(chan Record)
	go func() {
		defer close(out)
		defer func() {
			if err := watcher.Stop(); err != nil {
				log.Warn().Err(err).Str("key", s.key).Msg("stopping KV watcher failed")
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				var rec Record
				if err := json.Unmarshal(entry.Value(), &rec); err != nil {
					log.Warn().Err(err).Str("key", s.key).Msg("skipping unparsable slot update")
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
