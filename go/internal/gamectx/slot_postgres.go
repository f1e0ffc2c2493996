package gamectx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// PostgresSlot stores the record as a single JSONB row keyed by slot name, for
// deployments that already run the shared database but no JetStream. The
// upsert makes concurrent writers last-writer-wins, same as the KV slot.
type PostgresSlot struct {
	db  *sql.DB
	key string
}

func NewPostgresSlot(db *sql.DB, key string) *PostgresSlot {
	return &PostgresSlot{db: db, key: key}
}

// EnsureSchema creates the slot table when missing.
func (s *PostgresSlot) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS gameday_ctx_slots (
			slot_key   TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			written_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create slot table: %w", err)
	}
	return nil
}

func (s *PostgresSlot) Load(ctx context.Context) (Record, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM gameday_ctx_slots WHERE slot_key = $1`, s.key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", s.key, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warn().Err(err).Str("slot_key", s.key).Msg("slot row does not parse, treating as empty")
		return Record{}, nil
	}
	return rec, nil
}

func (s *PostgresSlot) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gameday_ctx_slots (slot_key, record, written_at)
		VALUES ($1, $2, now())
		ON CONFLICT (slot_key)
		DO UPDATE SET record = EXCLUDED.record, written_at = now()`,
		s.key, raw,
	)
	if err != nil {
		return fmt.Errorf("save slot %s: %w", s.key, err)
	}
	return nil
}
