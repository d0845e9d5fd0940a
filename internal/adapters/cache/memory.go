package cache

import (
	"strings"
	"sync"
	"time"

	"unreplied/internal/domain"
)

// MemoryCache is an in-memory listing cache with TTL support.
type MemoryCache struct {
	pages sync.Map
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// cacheEntry holds a cached page with expiration metadata.
type cacheEntry struct {
	page      *domain.CastPage
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache with the specified TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cache := &MemoryCache{ttl: ttl, done: make(chan struct{})}
	go cache.cleanup()
	return cache
}

// NormalizedKey returns the storage key for a listing key: listing:{key}
func NormalizedKey(key string) string {
	return "listing:" + strings.TrimSpace(key)
}

// Get retrieves a page from the cache.
// Returns the page and true if found and not expired, otherwise nil and false.
func (c *MemoryCache) Get(key string) (*domain.CastPage, bool) {
	k := NormalizedKey(key)
	value, ok := c.pages.Load(k)
	if !ok {
		return nil, false
	}

	entry := value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.pages.Delete(k)
		return nil, false
	}

	return entry.page, true
}

// Set stores a page in the cache with the configured TTL.
func (c *MemoryCache) Set(key string, page *domain.CastPage) {
	c.pages.Store(NormalizedKey(key), &cacheEntry{
		page:      page,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Close stops the cleanup loop.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.done) })
}

// cleanup periodically removes expired entries from the cache.
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.pages.Range(func(key, value any) bool {
				if now.After(value.(*cacheEntry).expiresAt) {
					c.pages.Delete(key)
				}
				return true
			})
		}
	}
}
