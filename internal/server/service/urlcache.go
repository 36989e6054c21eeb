package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxURLCacheTTL caps how long a signed URL is reused.
const maxURLCacheTTL = time.Hour

// URLCache remembers signed URLs per object key. Entries expire well before
// the URLs themselves so a cached URL always has most of its lifetime left.
type URLCache struct {
	cache *expirable.LRU[string, string]
}

// NewURLCache creates a cache for URLs signed with the given lifetime.
// A size of zero or less disables caching, as does a lifetime too short to
// halve. expirable treats a zero TTL as "never expire".
func NewURLCache(size int, urlTTL time.Duration) *URLCache {
	ttl := urlTTL / 2
	if size <= 0 || ttl <= 0 {
		return &URLCache{}
	}
	if ttl > maxURLCacheTTL {
		ttl = maxURLCacheTTL
	}
	return &URLCache{cache: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Get returns the cached URL for key.
func (c *URLCache) Get(key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	url, ok := c.cache.Get(key)
	if ok {
		urlCacheHitsTotal.Inc()
		return url, true
	}
	urlCacheMissesTotal.Inc()
	return "", false
}

// Set stores the URL for key.
func (c *URLCache) Set(key, url string) {
	if c.cache != nil {
		c.cache.Add(key, url)
	}
}

// Delete drops key, used when the object is removed.
func (c *URLCache) Delete(key string) {
	if c.cache != nil {
		c.cache.Remove(key)
	}
}
