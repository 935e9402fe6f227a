package gateway

import (
	"context"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/overlay/events"
)

// Mirror receives a copy of every broadcast, e.g. for an external event bus.
type Mirror interface {
	Publish(event *events.Event)
}

// Service is the overlay gateway: it owns the session pool and is the
// broadcaster for every state change.
type Service struct {
	connectionManager *ConnectionManager
	mirror            Mirror
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new gateway service. mirror may be nil.
func NewService(config Config, mirror Mirror) *Service {
	return &Service{
		connectionManager: NewConnectionManager(config.ConnectionConfig),
		mirror:            mirror,
	}
}

// Start runs the broadcast loop until ctx is done, then disconnects every
// session.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting overlay gateway service")

	s.connectionManager.Start(ctx)

	log.Info().Msg("overlay gateway service shutting down")
	return s.Stop()
}

// Stop disconnects every session.
func (s *Service) Stop() error {
	s.connectionManager.CloseAll()
	log.Info().Msg("overlay gateway service stopped")
	return nil
}

// Broadcast queues event for every session and hands it to the mirror. It
// never blocks.
func (s *Service) Broadcast(event *events.Event) {
	s.connectionManager.Broadcast(event)
	if s.mirror != nil {
		s.mirror.Publish(event)
	}
}

// RegisterRoutes registers the WebSocket and state routes.
func (s *Service) RegisterRoutes(router *httprouter.Router, handler EventHandler, state StateProvider) {
	NewWebSocketHandler(s.connectionManager, handler).RegisterRoutes(router)
	NewStateHandler(state, s.connectionManager).RegisterStateRoutes(router)
	log.Info().Msg("overlay gateway routes registered")
}

// GetStats returns statistics about active sessions.
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
