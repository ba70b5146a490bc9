package api

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/example/helpdesk-chat-relay/modules/presence"
	"github.com/example/helpdesk-chat-relay/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	// Health check
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	api := app.Group("/api/v1")
	api.Get("/presence", m.getPresence)
	api.Get("/messages", m.listMessages)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{
		"module":            "api",
		"connected_clients": m.hub.ClientCount(),
	}
	if users, err := m.presence.OnlineUsers(c.UserContext()); err == nil {
		details["online_users"] = len(users)
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// getPresence handles GET /api/v1/presence.
func (m *APIModule) getPresence(c *fiber.Ctx) error {
	users, err := m.presence.OnlineUsers(c.UserContext())
	if err != nil {
		m.logger.Warn("Failed to read presence", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "presence_failed",
			Message: "Failed to read online users",
		})
	}
	if users == nil {
		users = []string{}
	}
	return c.JSON(PresenceResponse{Users: users, Total: len(users)})
}

// listMessages handles GET /api/v1/messages.
func (m *APIModule) listMessages(c *fiber.Ctx) error {
	limit := relay.DefaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > relay.MaxHistoryLimit {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: "limit must be an integer between 1 and 1000",
			})
		}
		limit = parsed
	}

	messages, err := m.messages.ListMessages(c.UserContext(), limit)
	if err != nil {
		m.logger.Warn("Failed to list messages", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list messages",
		})
	}

	return c.JSON(MessagesResponse{Messages: messages, Total: len(messages)})
}

// handleWebSocket handles WebSocket connections at /ws. Frames of one
// connection are handled in order on this goroutine; all writes go through
// the hub.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	connID := presence.ConnID(uuid.New().String())
	client := m.hub.Register(connID, c)
	m.relay.OnConnect(connID)

	defer func() {
		m.hub.Unregister(connID)
		m.relay.OnDisconnect(connID)
		<-client.Done()
		m.logger.Info("WebSocket disconnected", "conn", connID)
	}()

	m.logger.Info("WebSocket connected", "conn", connID)

	if username := c.Query("username"); username != "" {
		_ = m.relay.OnRegister(connID, username)
	}

	limiter := m.newLimiter()
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "conn", connID, "error", err)
			}
			return
		}

		if !limiter.Allow() {
			m.sendError(connID, CodeRateLimited, "Rate limit exceeded, slow down")
			continue
		}

		m.handleFrame(context.Background(), connID, data)
	}
}

// handleFrame decodes one inbound frame and hands it to the coordinator.
// Errors from the coordinator have already been reported to the connection.
func (m *APIModule) handleFrame(ctx context.Context, connID presence.ConnID, data []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		m.sendError(connID, CodeInvalidFrame, "Invalid message format")
		return
	}

	var err error
	switch frame.Type {
	case FrameRegister:
		err = m.relay.OnRegister(connID, frame.Username)
	case FrameMessage:
		err = m.relay.OnChatMessage(ctx, connID, frame.Recipient, frame.Text)
	case FrameHistory:
		err = m.relay.History(ctx, connID, frame.Limit)
	default:
		m.sendError(connID, CodeUnknownType, "Unknown message type: "+frame.Type)
		return
	}
	if err != nil {
		m.logger.Debug("Frame rejected", "conn", connID, "type", frame.Type, "error", err)
	}
}

func (m *APIModule) newLimiter() *rate.Limiter {
	if m.cfg.RateLimitPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(m.cfg.RateLimitPerSecond), m.cfg.RateLimitBurst)
}

func (m *APIModule) sendError(connID presence.ConnID, code, message string) {
	payload := relay.ErrorPayload{Code: code, Error: message}
	if err := m.hub.SendTo(connID, relay.EventError, payload); err != nil {
		m.logger.Debug("Failed to send error", "conn", connID, "error", err)
	}
}
