package relay

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/example/helpdesk-chat-relay/domain/chat"
)

// Outbound event names sent to clients.
const (
	EventPresence  = "presence"
	EventMessage   = "message"
	EventHistory   = "history"
	EventError     = "error"
	EventDisplaced = "displaced"
)

// Error codes carried by EventError payloads.
const (
	CodeInvalidUsername  = "invalid_username"
	CodeUsernameTaken    = "username_taken"
	CodeNotRegistered    = "not_registered"
	CodeInvalidRecipient = "invalid_recipient"
	CodeInvalidMessage   = "invalid_message"
	CodeSaveFailed       = "save_failed"
	CodeHistoryFailed    = "history_failed"
)

// Validation limits.
const (
	MaxUsernameLength       = 50
	DefaultMaxMessageLength = 4096
	DefaultHistoryLimit     = 50
	MaxHistoryLimit         = 1000
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotRegistered     = errors.New("connection has not registered a username")
	ErrUsernameEmpty     = errors.New("username cannot be empty")
	ErrUsernameTooLong   = errors.New("username exceeds maximum length")
	ErrUsernameTaken     = errors.New("username is already online on another connection")
	ErrRecipientEmpty    = errors.New("recipient cannot be empty")
	ErrMessageEmpty      = errors.New("message text cannot be empty")
	ErrMessageTooLong    = errors.New("message exceeds maximum length")
	ErrMessageInvalid    = errors.New("message contains invalid characters")
	ErrSaveFailed        = errors.New("failed to save message")
)

// Policy decides what a registration does to a connection that already holds
// the same username.
type Policy string

const (
	// PolicyReplace moves the username to the new connection silently.
	PolicyReplace Policy = "replace"
	// PolicyNotify moves the username and sends EventDisplaced to the old connection.
	PolicyNotify Policy = "notify"
	// PolicyReject refuses the new registration.
	PolicyReject Policy = "reject"
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyReplace, PolicyNotify, PolicyReject:
		return p, nil
	case "":
		return PolicyReplace, nil
	default:
		return "", fmt.Errorf("unknown displacement policy %q", s)
	}
}

// Options tunes coordinator behaviour.
type Options struct {
	Policy           Policy
	MaxMessageLength int
	Now              func() time.Time
}

// DefaultOptions returns silent-replace with the default message limit.
func DefaultOptions() Options {
	return Options{
		Policy:           PolicyReplace,
		MaxMessageLength: DefaultMaxMessageLength,
		Now:              time.Now,
	}
}

// State is the lifecycle state of one connection.
type State int

const (
	StateAnonymous State = iota
	StateRegistered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrorPayload is sent with EventError.
type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// DisplacedPayload is sent with EventDisplaced.
type DisplacedPayload struct {
	Username string `json:"username"`
}

// HistoryPayload is sent with EventHistory.
type HistoryPayload struct {
	Messages []domain.Message `json:"messages"`
}

// PresenceRequest is the request for the relay.presence service.
type PresenceRequest struct{}

// PresenceResponse is the response of the relay.presence service.
type PresenceResponse struct {
	Users []string `json:"users"`
	Total int      `json:"total"`
}

// ValidateUsername validates a username.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}

// ValidateMessage validates message text against maxLen runes.
func ValidateMessage(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return ErrMessageEmpty
	}
	if !utf8.ValidString(text) {
		return ErrMessageInvalid
	}
	if utf8.RuneCountInString(text) > maxLen {
		return ErrMessageTooLong
	}
	return nil
}
