package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subject names are process-wide constants. A context subscribed under a
// different subject is simply invisible to the others; nothing fails at
// runtime.
const (
	ContextSubject = "gsds.ctx"
	NoticeSubject  = "gsds.notice"
)

// NATSBus is a Bus over a core NATS subject. NATS delivers published messages
// back to the publishing connection's own subscriptions, so inbound envelopes
// carrying our origin ID are dropped before the handler runs.
type NATSBus struct {
	nc      *nats.Conn
	subject string
	origin  string
}

// NewNATSBus creates a bus on the given subject. origin must be unique per
// execution context (one per process instance).
func NewNATSBus(nc *nats.Conn, subject, origin string) *NATSBus {
	return &NATSBus{nc: nc, subject: subject, origin: origin}
}

// ConnectOptions returns the NATS options used for bus connections: infinite
// reconnects with handler logging, matching how the rest of the deployment
// connects.
func ConnectOptions() []nats.Option {
	return []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
}

func (b *NATSBus) Publish(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal bus payload: %w", err)
	}
	env := Envelope{
		Origin: b.origin,
		SentAt: time.Now(),
		Data:   payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal bus envelope: %w", err)
	}
	if err := b.nc.Publish(b.subject, raw); err != nil {
		return fmt.Errorf("publish to %s: %w", b.subject, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(h Handler) (func(), error) {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Warn().Err(err).Str("subject", b.subject).Msg("dropping malformed bus envelope")
			return
		}
		if env.Origin == b.origin {
			return
		}
		h(env)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", b.subject, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", b.subject).Msg("unsubscribe failed")
		}
	}, nil
}
