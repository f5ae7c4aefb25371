package service

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Loader reads a setting from its backing store on a cache miss.
type Loader func(ctx context.Context, key string) (string, error)

// Cache is a read-through, size and TTL bounded view of platform settings.
// Writers must call Invalidate after changing the backing row.
type Cache struct {
	entries *lru.LRU[string, string]
	load    Loader
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewCache(size int, ttl time.Duration, load Loader) *Cache {
	if size <= 0 {
		size = 64
	}
	return &Cache{
		entries: lru.NewLRU[string, string](size, nil, ttl),
		load:    load,
	}
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if value, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return value, nil
	}
	c.misses.Add(1)
	value, err := c.load(ctx, key)
	if err != nil {
		return "", err
	}
	c.entries.Add(key, value)
	return value, nil
}

// Invalidate drops the given keys, or every entry when none are given.
func (c *Cache) Invalidate(keys ...string) {
	if len(keys) == 0 {
		c.entries.Purge()
		return
	}
	for _, key := range keys {
		c.entries.Remove(key)
	}
}

// Stats returns hit and miss counts since construction.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
