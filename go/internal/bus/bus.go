package bus

import (
	"encoding/json"
	"time"
)

// Envelope wraps a payload on its way across execution contexts. Origin is the
// sending instance's ID; receivers use it to drop their own echoes so a publish
// never loops back to the sender (the UI in the origin context has already been
// updated directly, and double-delivery would double-fire it).
type Envelope struct {
	Origin string          `json:"origin"`
	SentAt time.Time       `json:"sent_at"`
	Data   json.RawMessage `json:"data"`
}

// Handler receives envelopes published by other contexts. Handlers are never
// invoked for envelopes the local context published itself.
type Handler func(Envelope)

// Bus is a broadcast-only transport between same-deployment contexts. There is
// no acknowledgment and no ordering guarantee beyond send order within one
// sender.
type Bus interface {
	// Publish marshals data and sends it to every other context.
	Publish(data any) error
	// Subscribe registers a handler for inbound envelopes and returns a
	// function that cancels the subscription.
	Subscribe(h Handler) (func(), error)
}
