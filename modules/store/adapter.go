package store

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/helpdesk-chat-relay/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Adapter reaches the store module through its request-reply services.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("store: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// Save persists msg and returns its ID.
func (a *Adapter) Save(ctx context.Context, msg domain.Message) (string, error) {
	req := SaveMessageRequest{Message: msg}
	var resp SaveMessageResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSave,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return "", fmt.Errorf("failed to save message: %w", err)
	}
	return resp.ID, nil
}

// ListMessages returns up to limit stored messages, oldest first.
func (a *Adapter) ListMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	req := ListMessagesRequest{Limit: limit}
	var resp ListMessagesResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceList,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return resp.Messages, nil
}
