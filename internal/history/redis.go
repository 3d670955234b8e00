// Package history keeps the last turns of each conversation so agents can
// resolve references to earlier messages.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inventory-assistant/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

var ErrHistoryStore = errors.New("HISTORY_STORE_FAILED")

const (
	DefaultKeyPrefix = "history:"
	DefaultSize      = 10
	DefaultTTL       = 24 * time.Hour
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role     Role      `json:"role"`
	Text     string    `json:"text"`
	Category string    `json:"category,omitempty"`
	At       time.Time `json:"at"`
}

// Store is the history capability consumed by the orchestrator and agents.
type Store interface {
	Append(ctx context.Context, conversationID string, turns ...Turn) error
	Recent(ctx context.Context, conversationID string, n int) ([]Turn, error)
	Clear(ctx context.Context, conversationID string) error
}

// RedisStore keeps each conversation as a capped list under prefix+conversationID.
type RedisStore struct {
	client *redis.Client
	prefix string
	size   int
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, size int, ttl time.Duration, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		size:   size,
		ttl:    ttl,
		logger: logger.ForComponent(log, "history-store"),
	}
}

func (s *RedisStore) key(conversationID string) string {
	return s.prefix + conversationID
}

// Append pushes turns in order, trims the list to the configured size and
// refreshes the expiry, all in one transaction.
func (s *RedisStore) Append(ctx context.Context, conversationID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("%w: marshal turn: %v", ErrHistoryStore, err)
		}
		values = append(values, data)
	}

	key := s.key(conversationID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.size), -1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryStore, err)
	}
	return nil
}

// Recent returns up to n turns, oldest first. Unreadable entries are skipped.
func (s *RedisStore) Recent(ctx context.Context, conversationID string, n int) ([]Turn, error) {
	if n <= 0 || n > s.size {
		n = s.size
	}
	raw, err := s.client.LRange(ctx, s.key(conversationID), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryStore, err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			s.logger.Warn("skipping unreadable turn", map[string]interface{}{
				"conversationId": conversationID,
				"error":          err.Error(),
			})
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryStore, err)
	}
	return nil
}
