package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crewdesk/internal/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - conversation:{conv_id} - 5m TTL, conversation + participants

// CacheConfig contains configuration for caching
type CacheConfig struct {
	ConversationTTL time.Duration
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ConversationTTL: 5 * time.Minute,
	}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{
		client: client,
		config: config,
	}
}

func conversationKey(id uuid.UUID) string {
	return fmt.Sprintf("conversation:%s", id.String())
}

// GetConversation retrieves a conversation from cache. A nil result with a
// nil error means cache miss.
func (c *CacheStore) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	data, err := c.client.Get(ctx, conversationKey(id)).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var conv domain.Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SetConversation stores a conversation (with participants) in cache
func (c *CacheStore) SetConversation(ctx context.Context, conv *domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, conversationKey(conv.ID), data, c.config.ConversationTTL).Err()
}

// InvalidateConversation drops the cached entry after membership changes or deletion
func (c *CacheStore) InvalidateConversation(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, conversationKey(id)).Err()
}
