package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache implementation backing the Lite
// deployment profile (spec SUPPLEMENTED FEATURES "Deployment profile
// duality"), which runs with no external dependencies. It satisfies the
// same Cache interface as RedisCache so the Session Store never knows
// which profile it's running under.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	data      []byte
	set       map[string]struct{}
	expiresAt time.Time
	hasTTL    bool
}

// NewMemoryCache builds an empty MemoryCache. A background goroutine
// periodically evicts expired entries if cleanupInterval > 0.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{items: make(map[string]memoryItem)}
	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, v := range c.items {
			if v.hasTTL && now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}

func (c *MemoryCache) expired(item memoryItem) bool {
	return item.hasTTL && time.Now().After(item.expiresAt)
}

func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || c.expired(item) {
		return ErrNotFound
	}
	return json.Unmarshal(item.data, dest)
}

func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	item := memoryItem{data: data}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
		item.hasTTL = true
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || c.expired(item) {
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || c.expired(item) {
		return 0, ErrNotFound
	}
	if !item.hasTTL {
		return -1, nil
	}
	return time.Until(item.expiresAt), nil
}

func (c *MemoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || c.expired(item) {
		return ErrNotFound
	}
	item.expiresAt = time.Now().Add(ttl)
	item.hasTTL = true
	c.items[key] = item
	return nil
}

func (c *MemoryCache) HealthCheck(ctx context.Context) error { return nil }

func (c *MemoryCache) Ping(ctx context.Context) error { return nil }

func (c *MemoryCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.items = make(map[string]memoryItem)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) SAdd(ctx context.Context, key string, members ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || c.expired(item) {
		item = memoryItem{set: make(map[string]struct{})}
	}
	if item.set == nil {
		item.set = make(map[string]struct{})
	}
	for _, m := range members {
		item.set[fmt.Sprint(m)] = struct{}{}
	}
	c.items[key] = item
	return nil
}

func (c *MemoryCache) SMembers(ctx context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || c.expired(item) {
		return nil, nil
	}
	members := make([]string, 0, len(item.set))
	for m := range item.set {
		members = append(members, m)
	}
	return members, nil
}

func (c *MemoryCache) SRem(ctx context.Context, key string, members ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || item.set == nil {
		return nil
	}
	for _, m := range members {
		delete(item.set, fmt.Sprint(m))
	}
	c.items[key] = item
	return nil
}

func (c *MemoryCache) SCard(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || c.expired(item) {
		return 0, nil
	}
	return int64(len(item.set)), nil
}

var _ Cache = (*MemoryCache)(nil)
