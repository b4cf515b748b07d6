package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const conversationKeyPrefix = "bot:conversation:"

// ConversationMap maps a chat-platform thread id to its Genie conversation
// id so follow-up questions keep their context. Entries expire after the
// configured TTL; an expired entry simply starts a fresh conversation.
type ConversationMap struct {
	client *redis.Client
	ttl    time.Duration
}

func NewConversationMap(client *redis.Client, ttl time.Duration) (*ConversationMap, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ConversationMap{client: client, ttl: ttl}, nil
}

// Lookup returns the mapped Genie conversation id, or "" when the thread has
// no live conversation.
func (m *ConversationMap) Lookup(ctx context.Context, threadID string) (string, error) {
	value, err := m.client.Get(ctx, conversationKeyPrefix+threadID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup conversation mapping: %w", err)
	}
	return value, nil
}

func (m *ConversationMap) Store(ctx context.Context, threadID, conversationID string) error {
	if err := m.client.Set(ctx, conversationKeyPrefix+threadID, conversationID, m.ttl).Err(); err != nil {
		return fmt.Errorf("store conversation mapping: %w", err)
	}
	return nil
}

// Reset drops the mapping so the next question starts a new conversation.
func (m *ConversationMap) Reset(ctx context.Context, threadID string) error {
	if err := m.client.Del(ctx, conversationKeyPrefix+threadID).Err(); err != nil {
		return fmt.Errorf("reset conversation mapping: %w", err)
	}
	return nil
}
