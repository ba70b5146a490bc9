// Package store persists relayed chat messages.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	domain "github.com/example/helpdesk-chat-relay/domain/chat"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ErrInvalidMessage is returned when a message lacks a required field.
var ErrInvalidMessage = errors.New("message requires sender, recipient and text")

// Repository stores chat messages. Implementations must keep the insertion
// order of a single caller.
type Repository interface {
	Save(ctx context.Context, msg domain.Message) (string, error)
	ListMessages(ctx context.Context, limit int) ([]domain.Message, error)
	Ping(ctx context.Context) error
	Close() error
}

// SQLRepository provides message storage on top of GORM.
type SQLRepository struct {
	db *gorm.DB
}

// NewSQLRepository creates a new SQL-backed repository.
func NewSQLRepository(db *gorm.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Save inserts msg and returns its assigned ID.
func (r *SQLRepository) Save(ctx context.Context, msg domain.Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}

	row := fromDomain(msg)
	row.ID = uuid.New().String()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", fmt.Errorf("failed to create message: %w", err)
	}
	return row.ID, nil
}

// ListMessages returns the most recent limit messages, oldest first.
// A non-positive limit returns every message.
func (r *SQLRepository) ListMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	var rows []*ChatMessage

	q := r.db.WithContext(ctx).Order("created_at DESC").Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}

	slices.Reverse(rows)
	return lo.Map(rows, func(row *ChatMessage, _ int) domain.Message {
		return row.toDomain()
	}), nil
}

// Ping checks the database connection.
func (r *SQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func validate(msg domain.Message) error {
	if msg.Sender == "" || msg.Recipient == "" || msg.Text == "" {
		return ErrInvalidMessage
	}
	return nil
}
