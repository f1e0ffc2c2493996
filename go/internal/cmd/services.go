package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameday/go/clients/authority_client"
	"github.com/mcdev12/gameday/go/internal/bus"
	"github.com/mcdev12/gameday/go/internal/gamectx"
	ctxsync "github.com/mcdev12/gameday/go/internal/gamectx/sync"
	"github.com/mcdev12/gameday/go/internal/gateway"
	"github.com/mcdev12/gameday/go/internal/notify"
	"github.com/mcdev12/gameday/go/internal/periods"
)

type Services struct {
	Store      *gamectx.Store
	Syncer     *ctxsync.Syncer
	Scheduler  *periods.Scheduler
	Refresher  *periods.Refresher
	Dispatcher *notify.Dispatcher
	Gateway    *gateway.Service
	Manager    *gateway.ConnectionManager

	natsConn *nats.Conn
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// slot + buses → store → gateway → dispatcher → scheduler → syncer + refresher

	svcs := &Services{}

	var ctxBus, noticeBus bus.Bus
	var js jetstream.JetStream
	if config.NATS.Enabled {
		nc, err := nats.Connect(config.NATS.URL, bus.ConnectOptions()...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		svcs.natsConn = nc

		js, err = jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to open JetStream: %w", err)
		}

		origin := uuid.New().String()
		ctxBus = bus.NewNATSBus(nc, bus.ContextSubject, origin)
		noticeBus = bus.NewNATSBus(nc, bus.NoticeSubject, origin)
		log.Info().Str("url", config.NATS.URL).Str("origin", origin).Msg("NATS buses connected")
	}

	slot, err := setupSlot(ctx, config, js)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	svcs.Store = gamectx.NewStore(slot, ctxBus)

	// The gateway pool and its notice surface exist regardless of sync so
	// locally driven changes still reach connected clients.
	svcs.Manager = gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	svcs.Gateway = gateway.NewService(svcs.Manager, svcs.Store)

	surface := notify.MultiSurface{notify.LogSurface{}, svcs.Gateway}
	svcs.Dispatcher = notify.NewDispatcher(surface, noticeBus,
		notify.WithDuration(time.Duration(config.Periods.NoticeSeconds)*time.Second))

	clock := clockwork.NewRealClock()
	ref := periods.NewReferenceClock(clock, config.Periods.Timezone)
	svcs.Scheduler = periods.NewScheduler(clock, ref, svcs.Dispatcher)

	// The period dictionary needs only the authority URL; record sync is a
	// separate switch so a deployment can announce periods without ever
	// writing the shared record back.
	if config.Authority.BaseURL != "" {
		client := authority_client.NewAuthorityClient(config.Authority.BaseURL)

		refreshInterval := time.Duration(config.Periods.RefreshMinutes) * time.Minute
		dict := periodDictionary{client: client}
		svcs.Refresher = periods.NewRefresher(dict, svcs.Scheduler, svcs.Store, clock, refreshInterval)

		if config.Authority.SyncEnabled {
			opts := []ctxsync.Option{}
			if d := config.pushDelay(); d > 0 {
				opts = append(opts, ctxsync.WithPushDelay(d))
			}
			svcs.Syncer = ctxsync.NewSyncer(client, svcs.Store, opts...)
			svcs.Store.SetPusher(svcs.Syncer)
		}
	}

	return svcs, nil
}

// periodDictionary adapts the authority client to the refresher's view of
// the period dictionary.
type periodDictionary struct {
	client *authority_client.AuthorityClient
}

func (d periodDictionary) TryoutPeriods(ctx context.Context, tryoutID string) ([]periods.Period, error) {
	rows, err := d.client.GetTryoutPeriods(ctx, tryoutID)
	if err != nil {
		return nil, err
	}
	out := make([]periods.Period, 0, len(rows))
	for _, row := range rows {
		out = append(out, periods.Period{
			Code:  row.Code,
			Label: row.Label,
			Start: row.Start,
			End:   row.End,
		})
	}
	return out, nil
}

func setupSlot(ctx context.Context, config *Config, js jetstream.JetStream) (gamectx.Slot, error) {
	switch config.Slot.Backend {
	case "nats":
		if js == nil {
			return nil, fmt.Errorf("slot backend %q requires nats.enabled", config.Slot.Backend)
		}
		slot, err := gamectx.NewKVSlot(ctx, js, gamectx.DefaultKVBucket, gamectx.SlotKey)
		if err != nil {
			return nil, fmt.Errorf("failed to open KV slot: %w", err)
		}
		return slot, nil
	case "postgres":
		database, err := setupDatabase()
		if err != nil {
			return nil, err
		}
		slot := gamectx.NewPostgresSlot(database, gamectx.SlotKey)
		if err := slot.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure slot schema: %w", err)
		}
		return slot, nil
	case "memory":
		return gamectx.NewMemorySlot(), nil
	default:
		return nil, fmt.Errorf("unknown slot backend %q", config.Slot.Backend)
	}
}

// Start launches every background loop. Returns once wiring is done; the
// loops run until ctx is cancelled.
func (s *Services) Start(ctx context.Context, config *Config) error {
	if err := s.Store.Start(ctx); err != nil {
		return fmt.Errorf("failed to start record store: %w", err)
	}

	go s.Manager.Start(ctx)
	s.Gateway.AttachStore()

	if err := s.Dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notice dispatcher: %w", err)
	}

	go s.Scheduler.Run(ctx)

	if s.Syncer != nil {
		s.Syncer.StartPolling(ctx, config.pollInterval())
	}
	if s.Refresher != nil {
		go s.Refresher.Run(ctx)
	}
	return nil
}

// Close releases held connections. Safe on a partially wired value.
func (s *Services) Close() {
	if s.Syncer != nil {
		s.Syncer.StopPolling()
	}
	if s.natsConn != nil {
		s.natsConn.Close()
	}
}
