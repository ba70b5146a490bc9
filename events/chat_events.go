package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// Presence change kinds.
const (
	PresenceRegistered   = "registered"
	PresenceUnregistered = "unregistered"
	PresenceDisplaced    = "displaced"
)

// MessageRelayedEvent is emitted after a chat message is persisted and routed.
type MessageRelayedEvent struct {
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Delivered bool      `json:"delivered"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceChangedEvent is emitted whenever the set of online users changes.
type PresenceChangedEvent struct {
	Username  string    `json:"username"`
	Change    string    `json:"change"`
	Online    []string  `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the relay domain.
var (
	MessageRelayedV1 = helper.EventDefinition[MessageRelayedEvent](
		"relay",
		"MessageRelayed",
		"v1",
	)

	PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
		"relay",
		"PresenceChanged",
		"v1",
	)
)
