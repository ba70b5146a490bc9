package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domain "github.com/example/helpdesk-chat-relay/domain/chat"
	"github.com/example/helpdesk-chat-relay/events"
	"github.com/example/helpdesk-chat-relay/modules/presence"
	"github.com/go-monolith/mono/pkg/types"
)

// Transport delivers events to client connections. Implementations must not
// block on slow clients; the coordinator may call them while holding its lock.
type Transport interface {
	SendTo(conn presence.ConnID, event string, payload any) error
	Broadcast(event string, payload any)
}

// Store persists chat messages. Save must preserve submission order for a
// single caller.
type Store interface {
	Save(ctx context.Context, msg domain.Message) (string, error)
	ListMessages(ctx context.Context, limit int) ([]domain.Message, error)
}

// Notifier observes relay activity. Notifications are best-effort.
type Notifier interface {
	PresenceChanged(event events.PresenceChangedEvent)
	MessageRelayed(event events.MessageRelayedEvent)
}

type session struct {
	state    State
	username string
}

// Coordinator routes connection lifecycle events and chat messages. It is
// the only writer of the presence registry.
type Coordinator struct {
	registry  *presence.Registry
	transport Transport
	store     Store
	notifier  Notifier
	logger    types.Logger
	opts      Options

	sessions map[presence.ConnID]*session
	mu       sync.Mutex
}

// NewCoordinator creates a coordinator. notifier may be nil.
func NewCoordinator(
	registry *presence.Registry,
	transport Transport,
	store Store,
	notifier Notifier,
	logger types.Logger,
	opts Options,
) *Coordinator {
	if opts.Policy == "" {
		opts.Policy = PolicyReplace
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = DefaultMaxMessageLength
	}
	if opts.Now == nil {
		opts.Now = DefaultOptions().Now
	}
	return &Coordinator{
		registry:  registry,
		transport: transport,
		store:     store,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
		sessions:  make(map[presence.ConnID]*session),
	}
}

// OnConnect starts an anonymous session for a new connection.
func (c *Coordinator) OnConnect(conn presence.ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[conn]; ok {
		return
	}
	c.sessions[conn] = &session{state: StateAnonymous}
	c.logger.Debug("Connection opened", "conn", conn)
}

// OnRegister binds username to conn and broadcasts the new presence list to
// every connection.
func (c *Coordinator) OnRegister(conn presence.ConnID, username string) error {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		c.sendError(conn, CodeInvalidUsername, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[conn]
	if !ok {
		return ErrUnknownConnection
	}

	if holder, held := c.registry.Lookup(username); held && holder != conn && c.opts.Policy == PolicyReject {
		c.sendError(conn, CodeUsernameTaken, ErrUsernameTaken)
		return ErrUsernameTaken
	}

	res := c.registry.Register(username, conn)
	s.state = StateRegistered
	s.username = username

	if res.Displaced != "" {
		if ds, ok := c.sessions[res.Displaced]; ok {
			ds.state = StateAnonymous
			ds.username = ""
		}
		if c.opts.Policy == PolicyNotify {
			if err := c.transport.SendTo(res.Displaced, EventDisplaced, DisplacedPayload{Username: username}); err != nil {
				c.logger.Debug("Displaced connection unreachable", "conn", res.Displaced, "error", err)
			}
		}
		c.logger.Info("Username moved to new connection",
			"username", username, "from", res.Displaced, "to", conn)
	}

	online := c.registry.Snapshot()
	c.transport.Broadcast(EventPresence, domain.Presence{Users: online})

	if res.Previous != "" {
		c.notifyPresence(res.Previous, events.PresenceUnregistered, online)
	}
	change := events.PresenceRegistered
	if res.Displaced != "" {
		change = events.PresenceDisplaced
	}
	c.notifyPresence(username, change, online)

	c.logger.Info("User registered", "username", username, "conn", conn, "online", len(online))
	return nil
}

// OnChatMessage persists a message from the user registered on conn, then
// delivers it to the recipient if online and echoes it back to conn. A failed
// save is reported to conn only and suppresses delivery. Errors returned here
// have already been reported to the connection.
func (c *Coordinator) OnChatMessage(ctx context.Context, conn presence.ConnID, recipient, text string) error {
	c.mu.Lock()
	s, ok := c.sessions[conn]
	var (
		state  State
		sender string
	)
	if ok {
		state, sender = s.state, s.username
	}
	c.mu.Unlock()

	if !ok {
		return ErrUnknownConnection
	}
	if state != StateRegistered {
		c.sendError(conn, CodeNotRegistered, ErrNotRegistered)
		return ErrNotRegistered
	}

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		c.sendError(conn, CodeInvalidRecipient, ErrRecipientEmpty)
		return ErrRecipientEmpty
	}
	if err := ValidateMessage(text, c.opts.MaxMessageLength); err != nil {
		c.sendError(conn, CodeInvalidMessage, err)
		return err
	}

	msg := domain.Message{
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		CreatedAt: c.opts.Now().UTC(),
	}

	id, err := c.store.Save(ctx, msg)
	if err != nil {
		c.logger.Warn("Failed to persist message", "sender", sender, "recipient", recipient, "error", err)
		c.sendError(conn, CodeSaveFailed, err)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	msg.ID = id

	delivered := false
	if target, online := c.registry.Lookup(recipient); online {
		if err := c.transport.SendTo(target, EventMessage, msg); err != nil {
			c.logger.Debug("Recipient connection unreachable", "recipient", recipient, "error", err)
		} else {
			delivered = true
		}
	}

	if err := c.transport.SendTo(conn, EventMessage, msg); err != nil {
		c.logger.Debug("Sender connection unreachable", "sender", sender, "error", err)
	}

	if c.notifier != nil {
		c.notifier.MessageRelayed(events.MessageRelayedEvent{
			MessageID: msg.ID,
			Sender:    msg.Sender,
			Recipient: msg.Recipient,
			Delivered: delivered,
			Timestamp: msg.CreatedAt,
		})
	}

	c.logger.Debug("Message relayed", "id", msg.ID, "sender", sender, "recipient", recipient, "delivered", delivered)
	return nil
}

// OnDisconnect closes the session for conn. If a username was bound to it,
// the new presence list is broadcast. Unknown connections are ignored.
func (c *Coordinator) OnDisconnect(conn presence.ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[conn]
	if !ok {
		return
	}
	s.state = StateClosed
	delete(c.sessions, conn)

	username, removed := c.registry.Unregister(conn)
	if !removed {
		c.logger.Debug("Anonymous connection closed", "conn", conn)
		return
	}

	online := c.registry.Snapshot()
	c.transport.Broadcast(EventPresence, domain.Presence{Users: online})
	c.notifyPresence(username, events.PresenceUnregistered, online)

	c.logger.Info("User disconnected", "username", username, "conn", conn, "online", len(online))
}

// History sends up to limit stored messages, oldest first, to conn.
func (c *Coordinator) History(ctx context.Context, conn presence.ConnID, limit int) error {
	messages, err := c.ListMessages(ctx, limit)
	if err != nil {
		c.sendError(conn, CodeHistoryFailed, err)
		return err
	}
	return c.transport.SendTo(conn, EventHistory, HistoryPayload{Messages: messages})
}

// ListMessages returns up to limit stored messages, oldest first.
func (c *Coordinator) ListMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	messages, err := c.store.ListMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Snapshot returns the usernames currently online.
func (c *Coordinator) Snapshot() []string {
	return c.registry.Snapshot()
}

// StateOf returns the lifecycle state of conn. Unknown connections report
// StateClosed.
func (c *Coordinator) StateOf(conn presence.ConnID) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[conn]; ok {
		return s.state
	}
	return StateClosed
}

// SessionCount returns the number of open connections.
func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Coordinator) sendError(conn presence.ConnID, code string, err error) {
	payload := ErrorPayload{Code: code, Error: err.Error()}
	if sendErr := c.transport.SendTo(conn, EventError, payload); sendErr != nil {
		c.logger.Debug("Failed to send error event", "conn", conn, "code", code, "error", sendErr)
	}
}

func (c *Coordinator) notifyPresence(username, change string, online []string) {
	if c.notifier == nil {
		return
	}
	c.notifier.PresenceChanged(events.PresenceChangedEvent{
		Username:  username,
		Change:    change,
		Online:    online,
		Timestamp: c.opts.Now().UTC(),
	})
}
