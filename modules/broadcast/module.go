package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/example/helpdesk-chat-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// BroadcastModule owns the WebSocket hub and tracks relay activity from
// the event bus.
type BroadcastModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
	logger    types.Logger

	messagesRelayed   atomic.Uint64
	messagesDelivered atomic.Uint64
	presenceChanges   atomic.Uint64
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(logger types.Logger) *BroadcastModule {
	return &BroadcastModule{
		hub:    NewHub(logger, DefaultQueueSize),
		logger: logger,
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start starts the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Broadcast module started - WebSocket hub running")
	return nil
}

// Stop closes every client and waits for the hub to finish.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Broadcast module stopped", "clients", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: m.Stats(),
	}
}

// Stats returns hub and relay activity counters.
func (m *BroadcastModule) Stats() map[string]any {
	return map[string]any{
		"connected_clients":  m.hub.ClientCount(),
		"messages_relayed":   m.messagesRelayed.Load(),
		"messages_delivered": m.messagesDelivered.Load(),
		"presence_changes":   m.presenceChanges.Load(),
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageRelayedV1, m.handleMessageRelayed, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageRelayed consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.PresenceChangedV1, m.handlePresenceChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register PresenceChanged consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", []string{"MessageRelayed.v1", "PresenceChanged.v1"})
	return nil
}

func (m *BroadcastModule) handleMessageRelayed(_ context.Context, event events.MessageRelayedEvent, _ *mono.Msg) error {
	m.messagesRelayed.Add(1)
	if event.Delivered {
		m.messagesDelivered.Add(1)
	}
	return nil
}

func (m *BroadcastModule) handlePresenceChanged(_ context.Context, event events.PresenceChangedEvent, _ *mono.Msg) error {
	m.presenceChanges.Add(1)
	m.logger.Debug("Presence changed", "username", event.Username, "change", event.Change, "online", len(event.Online))
	return nil
}

// GetHub returns the WebSocket hub for the API and relay modules.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
