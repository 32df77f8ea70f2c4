package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// OwnershipCache remembers chat -> owner lookups. A chat's owner never changes
// and chats are never deleted, so entries never go stale; expiry only bounds memory.
type OwnershipCache struct {
	cache *cache.Cache
}

func NewOwnershipCache(ttl time.Duration) *OwnershipCache {
	return &OwnershipCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *OwnershipCache) Put(chatId, ownerId uuid.UUID) {
	c.cache.Set(chatId.String(), ownerId, cache.DefaultExpiration)
}

func (c *OwnershipCache) Owner(chatId uuid.UUID) (uuid.UUID, bool) {
	if x, found := c.cache.Get(chatId.String()); found {
		return x.(uuid.UUID), true
	}
	return uuid.Nil, false
}

func (c *OwnershipCache) Len() int {
	return c.cache.ItemCount()
}
