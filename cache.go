package zenstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache is the read-cache contract repositories use for FindOne/FindByID
// results. Delete accepts a trailing-* pattern so a repository can drop every
// entry for its collection after a write.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, duration time.Duration)
	Delete(ctx context.Context, key string)
}

type MemoryCache struct {
	items map[string]cacheItem
	mu    sync.RWMutex
	ttl   time.Duration
}

type cacheItem struct {
	value      []byte
	expiration int64
}

func NewMemoryCache(defaultExpiration time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]cacheItem),
		ttl:   defaultExpiration,
	}

	go cache.startGC(defaultExpiration)

	return cache
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, duration time.Duration) {
	if duration <= 0 {
		duration = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{
		value:      value,
		expiration: time.Now().Add(duration).UnixNano(),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found {
		return nil, false
	}

	if time.Now().UnixNano() > item.expiration {
		return nil, false
	}

	return item.value, true
}

func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key == "*" {
		c.items = make(map[string]cacheItem)
		return
	}

	if strings.HasSuffix(key, "*") {
		prefix := key[:len(key)-1]
		for k := range c.items {
			if strings.HasPrefix(k, prefix) {
				delete(c.items, k)
			}
		}
		return
	}

	delete(c.items, key)
}

func (c *MemoryCache) startGC(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		<-ticker.C
		c.deleteExpired()
	}
}

func (c *MemoryCache) deleteExpired() {
	now := time.Now().UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.items {
		if now > v.expiration {
			delete(c.items, k)
		}
	}
}
