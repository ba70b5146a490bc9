package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/helpdesk-chat-relay/events"
	"github.com/example/helpdesk-chat-relay/modules/presence"
	"github.com/example/helpdesk-chat-relay/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// ServicePresence is the request-reply service returning the online users.
const ServicePresence = "presence"

// Module hosts the relay coordinator and the presence registry.
type Module struct {
	registry    *presence.Registry
	coordinator *Coordinator
	transport   Transport
	store       Store
	eventBus    mono.EventBus
	opts        Options
	logger      types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Notifier                   = (*Module)(nil)
)

// NewModule creates a new relay module.
func NewModule(opts Options, logger types.Logger) *Module {
	return &Module{
		registry: presence.NewRegistry(),
		opts:     opts,
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"store"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "store":
		m.store = store.NewAdapter(container)
	}
}

// SetTransport sets the client transport (called from main.go).
func (m *Module) SetTransport(t Transport) {
	m.transport = t
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageRelayedV1.ToBase(),
		events.PresenceChangedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServicePresence, json.Unmarshal, json.Marshal, m.handlePresence,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServicePresence, err)
	}

	m.logger.Info("Registered relay services", "services", []string{ServicePresence})
	return nil
}

func (m *Module) handlePresence(_ context.Context, _ PresenceRequest, _ *mono.Msg) (PresenceResponse, error) {
	users := m.registry.Snapshot()
	return PresenceResponse{Users: users, Total: len(users)}, nil
}

// Start builds the coordinator from the injected collaborators.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil {
		return fmt.Errorf("store dependency not set")
	}
	if m.transport == nil {
		return fmt.Errorf("transport dependency not set")
	}

	m.coordinator = NewCoordinator(m.registry, m.transport, m.store, m, m.logger, m.opts)
	m.logger.Info("Relay module started", "policy", string(m.coordinator.opts.Policy))
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Relay module stopped", "online", m.registry.Len())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"online_users": m.registry.Len(),
	}
	if m.coordinator != nil {
		details["open_sessions"] = m.coordinator.SessionCount()
	}
	return mono.HealthStatus{
		Healthy: m.coordinator != nil,
		Message: "operational",
		Details: details,
	}
}

// Coordinator returns the relay coordinator. It is nil until Start.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}

// PresenceChanged publishes a PresenceChanged event.
func (m *Module) PresenceChanged(event events.PresenceChangedEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.PresenceChangedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish PresenceChanged event", "error", err)
	}
}

// MessageRelayed publishes a MessageRelayed event.
func (m *Module) MessageRelayed(event events.MessageRelayedEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.MessageRelayedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish MessageRelayed event", "error", err)
	}
}
