package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service assembles the gateway: WebSocket subscriptions, the JetStream
// bridge and the HTTP pull/resync surface.
type Service struct {
	connectionManager *ConnectionManager
	handler           *Handler
	eventConsumer     *EventConsumer
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates a new gateway service. The connection manager is
// injected because the reconciliation loop uses it as subscriber counter
// and must exist before the consumer wiring.
func NewService(config Config, connectionManager *ConnectionManager, state StateProvider, resyncer Resyncer, freshness Freshness) (*Service, error) {
	eventConsumer, err := NewEventConsumer(connectionManager, freshness, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		handler:           NewHandler(connectionManager, state, resyncer),
		eventConsumer:     eventConsumer,
	}, nil
}

// ConnectionManager exposes the manager so wiring can hook subscriber
// lifecycle callbacks and the reconciliation loop's subscriber counter.
func (s *Service) ConnectionManager() *ConnectionManager {
	return s.connectionManager
}

// Start begins the gateway service and blocks until the context ends.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting session gateway service")

	go s.connectionManager.Start(ctx)

	go func() {
		if err := s.eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("session gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service.
func (s *Service) Stop() error {
	if err := s.eventConsumer.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop event consumer")
	}
	log.Info().Msg("session gateway service stopped")
	return nil
}

// RegisterRoutes registers the gateway HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
	log.Info().Msg("session gateway routes registered")
}
