// Package pending stores suspended movement batches, one per conversation.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/movement"

	"github.com/redis/go-redis/v9"
)

var ErrCorruptContinuation = errors.New("CORRUPT_CONTINUATION")

const DefaultKeyPrefix = "pending:"

// RedisStore keeps each continuation as a JSON string under prefix+conversationID.
// SET replaces atomically, so the last suspension wins; the key TTL enforces expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.ForComponent(log, "continuation-store"),
	}
}

func (s *RedisStore) key(conversationID string) string {
	return s.prefix + conversationID
}

func (s *RedisStore) Put(ctx context.Context, c *movement.Continuation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal continuation: %w", err)
	}
	if err := s.client.Set(ctx, s.key(c.ConversationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store continuation: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, conversationID string) (*movement.Continuation, bool, error) {
	data, err := s.client.Get(ctx, s.key(conversationID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load continuation: %w", err)
	}

	var c movement.Continuation
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		// Unreadable state would block the conversation forever; drop it.
		s.logger.Warn("dropping unreadable continuation", map[string]interface{}{
			"conversationId": conversationID,
			"error":          err.Error(),
		})
		_ = s.Clear(ctx, conversationID)
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptContinuation, err)
	}
	if c.Expired(time.Now(), s.ttl) {
		return nil, false, nil
	}
	return &c, true, nil
}

func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("clear continuation: %w", err)
	}
	return nil
}
