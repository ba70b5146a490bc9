package store

import domain "github.com/example/helpdesk-chat-relay/domain/chat"

// Service names registered by the store module.
const (
	ServiceSave = "save"
	ServiceList = "list"
)

// SaveMessageRequest is the request for saving a message.
type SaveMessageRequest struct {
	Message domain.Message `json:"message"`
}

// SaveMessageResponse is the response after saving a message.
type SaveMessageResponse struct {
	ID string `json:"id"`
}

// ListMessagesRequest is the request for listing messages.
type ListMessagesRequest struct {
	Limit int `json:"limit"`
}

// ListMessagesResponse is the response containing stored messages.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}
