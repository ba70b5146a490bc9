package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	domain "github.com/example/helpdesk-chat-relay/domain/chat"
	"github.com/redis/go-redis/v9"
)

// RedisRepository stores messages as JSON entries of a Redis list.
type RedisRepository struct {
	client *redis.Client
	key    string
}

// NewRedisRepository creates a Redis-backed repository writing to key.
func NewRedisRepository(client *redis.Client, key string) *RedisRepository {
	return &RedisRepository{
		client: client,
		key:    key,
	}
}

// Save appends msg to the list and returns its assigned ID.
func (r *RedisRepository) Save(ctx context.Context, msg domain.Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}

	seq, err := r.client.Incr(ctx, r.key+":seq").Result()
	if err != nil {
		return "", fmt.Errorf("redis incr error: %w", err)
	}
	msg.ID = strconv.FormatInt(seq, 10)

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("redis marshal error: %w", err)
	}

	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return "", fmt.Errorf("redis rpush error: %w", err)
	}
	return msg.ID, nil
}

// ListMessages returns the most recent limit messages, oldest first.
// A non-positive limit returns every message.
func (r *RedisRepository) ListMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	entries, err := r.client.LRange(ctx, r.key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange error: %w", err)
	}

	messages := make([]domain.Message, 0, len(entries))
	for _, entry := range entries {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("redis unmarshal error: %w", err)
		}
		messages = append(messages, msg)
	}
	sortByCreatedAt(messages)
	return messages, nil
}

// sortByCreatedAt orders messages by creation time. Concurrent saves can push
// out of CreatedAt order; push order breaks ties.
func sortByCreatedAt(messages []domain.Message) {
	slices.SortStableFunc(messages, func(a, b domain.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// Ping checks if the Redis connection is healthy.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
