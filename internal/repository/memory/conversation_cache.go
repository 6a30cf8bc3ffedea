package memory

import (
	"time"

	"hiring-chat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ConversationCache keeps recently used conversations for participant checks.
// Participants never change, so a stale LastSeq or LastMessageAt is harmless
// for that purpose; callers needing those fields must read the repository.
type ConversationCache struct {
	cache *cache.Cache
}

func NewConversationCache(ttl time.Duration) *ConversationCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ConversationCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *ConversationCache) Save(conversation *entity.Conversation) {
	cp := *conversation
	c.cache.Set(conversation.Id.String(), &cp, cache.DefaultExpiration)
}

func (c *ConversationCache) Get(id uuid.UUID) (*entity.Conversation, bool) {
	if x, found := c.cache.Get(id.String()); found {
		cp := *x.(*entity.Conversation)
		return &cp, true
	}
	return nil, false
}

func (c *ConversationCache) Delete(id uuid.UUID) {
	c.cache.Delete(id.String())
}
