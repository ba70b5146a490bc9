package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// PresencePort defines read access to presence for other modules.
type PresencePort interface {
	OnlineUsers(ctx context.Context) ([]string, error)
}

// PresenceAdapter implements PresencePort using the service container.
type PresenceAdapter struct {
	container mono.ServiceContainer
}

// NewPresenceAdapter creates a new PresenceAdapter.
func NewPresenceAdapter(container mono.ServiceContainer) *PresenceAdapter {
	if container == nil {
		panic("relay: ServiceContainer is nil")
	}
	return &PresenceAdapter{container: container}
}

// OnlineUsers returns the usernames currently online.
func (a *PresenceAdapter) OnlineUsers(ctx context.Context) ([]string, error) {
	req := PresenceRequest{}
	var resp PresenceResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServicePresence,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}
	return resp.Users, nil
}
