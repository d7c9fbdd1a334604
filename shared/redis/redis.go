// Package redis caches per-user chat lists. Only plaintext chat metadata
// (ids, titles, creation times) is ever cached here; message bodies never
// leave the encrypted store.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"qna-chatbot/backend/chat/models"
	"qna-chatbot/backend/pkg/logger"
)

type ChatListCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewChatListCache(addr string, ttl time.Duration, log *logger.Logger) *ChatListCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &ChatListCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func chatListKey(userID string) string {
	return "chats:" + userID
}

// GetChats returns the cached chat list for a user, if present.
func (c *ChatListCache) GetChats(ctx context.Context, userID string) ([]models.Chat, bool) {
	raw, err := c.client.Get(ctx, chatListKey(userID)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("chat list cache read failed", "error", err.Error())
		return nil, false
	}

	var chats []models.Chat
	if err := json.Unmarshal([]byte(raw), &chats); err != nil {
		c.log.Warn("chat list cache entry corrupt, dropping", "user_id", userID)
		c.client.Del(ctx, chatListKey(userID))
		return nil, false
	}
	return chats, true
}

// SetChats caches a user's chat list. Failures are logged and ignored; the
// cache is an optimization, not a source of truth.
func (c *ChatListCache) SetChats(ctx context.Context, userID string, chats []models.Chat) {
	raw, err := json.Marshal(chats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, chatListKey(userID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("chat list cache write failed", "error", err.Error())
	}
}

// Invalidate drops a user's cached chat list after a create, delete, or
// title update.
func (c *ChatListCache) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, chatListKey(userID)).Err(); err != nil {
		c.log.Warn("chat list cache invalidation failed", "error", err.Error())
	}
}

// Ping verifies the redis connection, for health checks.
func (c *ChatListCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
