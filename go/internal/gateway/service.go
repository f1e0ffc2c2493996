package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameday/go/internal/gamectx"
)

// Service ties the connection pool to the record store and exposes the
// WebSocket endpoint. It also implements notify.Surface so period notices
// reach every connected client.
type Service struct {
	manager *ConnectionManager
	store   *gamectx.Store
}

// NewService builds the gateway over an existing pool and store.
func NewService(manager *ConnectionManager, store *gamectx.Store) *Service {
	return &Service{manager: manager, store: store}
}

// AttachStore subscribes to record merges and pushes a snapshot frame on
// every change. Returns the unsubscribe handle.
func (s *Service) AttachStore() func() {
	return s.store.Subscribe(func(rec gamectx.Record) {
		event, err := NewContextEvent(rec)
		if err != nil {
			log.Error().Err(err).Msg("failed to build context event")
			return
		}
		s.manager.Broadcast(event)
	})
}

// HandleConnection upgrades the request and immediately sends the current
// record so new clients do not wait for the next merge.
func (s *Service) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.manager.UpgradeConnection(w, r)
	if err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}

	event, err := NewContextEvent(s.store.Read())
	if err != nil {
		log.Error().Err(err).Msg("failed to build snapshot event")
		return
	}
	s.manager.SendTo(conn, event)
}

// Show broadcasts a notice frame. Part of the notify.Surface contract.
func (s *Service) Show(text string) {
	event, err := NewNoticeEvent(text)
	if err != nil {
		log.Error().Err(err).Msg("failed to build notice event")
		return
	}
	s.manager.Broadcast(event)
}

// Hide broadcasts the take-down frame. Part of the notify.Surface contract.
func (s *Service) Hide() {
	s.manager.Broadcast(NewNoticeClearEvent())
}

// RegisterRoutes registers the gateway endpoints on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.HandleConnection)
}
