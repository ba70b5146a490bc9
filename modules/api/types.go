package api

import (
	"context"

	domain "github.com/example/helpdesk-chat-relay/domain/chat"
	"github.com/example/helpdesk-chat-relay/modules/presence"
)

// Inbound WebSocket frame types.
const (
	FrameRegister = "register"
	FrameMessage  = "message"
	FrameHistory  = "history"
)

// Error codes raised by the WebSocket adapter itself.
const (
	CodeInvalidFrame = "invalid_frame"
	CodeUnknownType  = "unknown_type"
	CodeRateLimited  = "rate_limited"
)

// InboundFrame is a client-to-server WebSocket message.
type InboundFrame struct {
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Text      string `json:"text,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Relay is the part of the relay coordinator driven by WebSocket events.
type Relay interface {
	OnConnect(conn presence.ConnID)
	OnRegister(conn presence.ConnID, username string) error
	OnChatMessage(ctx context.Context, conn presence.ConnID, recipient, text string) error
	OnDisconnect(conn presence.ConnID)
	History(ctx context.Context, conn presence.ConnID, limit int) error
}

// MessageLister reads stored messages, oldest first.
type MessageLister interface {
	ListMessages(ctx context.Context, limit int) ([]domain.Message, error)
}

// PresenceResponse is the API response for the online users.
type PresenceResponse struct {
	Users []string `json:"users"`
	Total int      `json:"total"`
}

// MessagesResponse is the API response for message history.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
