package gamectx

import (
	"strconv"
	"time"
)

// Context record field names. Two parallel naming schemes carry the same
// logical values: the game scheme (game/drive/play) and the tryout scheme
// (tryout/station/rep). Period and group codes exist only on the tryout side.
const (
	FieldGameID  = "game_id"
	FieldDriveID = "drive_id"
	FieldPlayID  = "play_id"

	FieldTryoutID  = "tryout_id"
	FieldStationID = "station_id"
	FieldRepID     = "rep_id"

	FieldPeriodCode = "period_code"
	FieldGroupCode  = "group_code"

	// FieldUpdatedAt is the local writer's logical clock, in milliseconds
	// since epoch. Server-provenance merges carry the authority's timestamp
	// instead.
	FieldUpdatedAt = "updated_at"
)

// aliasPairs maps each tryout-scheme field to its game-scheme twin.
var aliasPairs = [...][2]string{
	{FieldTryoutID, FieldGameID},
	{FieldStationID, FieldDriveID},
	{FieldRepID, FieldPlayID},
}

// KnownFields is every field Clear resets. updated_at is excluded: a clear is
// itself a write and stamps a fresh logical clock.
var KnownFields = []string{
	FieldGameID, FieldDriveID, FieldPlayID,
	FieldTryoutID, FieldStationID, FieldRepID,
	FieldPeriodCode, FieldGroupCode,
}

// Record is the shared current-focus state. A missing key means the field was
// never written; an empty string means it was cleared. Aliased pairs are equal
// after every merge.
type Record map[string]string

// Clone returns an independent copy. Clone of nil is an empty, non-nil record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the field was ever written, cleared values included.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// UpdatedAt returns the record's logical clock, or zero when absent or
// malformed.
func (r Record) UpdatedAt() int64 {
	ms, err := strconv.ParseInt(r[FieldUpdatedAt], 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// applyAliases makes the aliasing total and bidirectional after a merge of
// partial into r. The side the writer touched is native and overwrites its
// twin; a writer setting both sides explicitly wins as-is; pairs the writer
// never touched only fill an absent twin.
func (r Record) applyAliases(partial Record) {
	for _, pair := range aliasPairs {
		tryout, game := pair[0], pair[1]
		switch {
		case partial.Has(tryout) && !partial.Has(game):
			r[game] = r[tryout]
		case partial.Has(game) && !partial.Has(tryout):
			r[tryout] = r[game]
		case partial.Has(tryout) && partial.Has(game):
			// Writer decided both values.
		default:
			if v, ok := r[tryout]; ok && !r.Has(game) {
				r[game] = v
			}
			if v, ok := r[game]; ok && !r.Has(tryout) {
				r[tryout] = v
			}
		}
	}
}

// stamp sets updated_at to the given instant in epoch milliseconds.
func (r Record) stamp(now time.Time) {
	r[FieldUpdatedAt] = strconv.FormatInt(now.UnixMilli(), 10)
}
