package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type Item struct {
	Value     string
	ExpiresAt time.Time
}

// Cache is an in-memory TTL map shared by the translators of one run.
type Cache struct {
	mu    sync.RWMutex
	items map[string]Item
	now   func() time.Time
}

func New() *Cache {
	return &Cache{
		items: make(map[string]Item),
		now:   time.Now,
	}
}

func (c *Cache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = Item{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()
	if !exists {
		return "", false
	}

	if c.now().After(item.ExpiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return "", false
	}

	return item.Value, true
}

// Key hashes the parts into a stable cache key.
func Key(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

