package upstream

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheEntry is a listing fetched during the current run.
type CacheEntry struct {
	// Entries are the raw names found at the listing (files or tags)
	Entries []string
	// Timestamp is when the listing was fetched
	Timestamp time.Time
}

// ListingCache keeps listings for the lifetime of one run so packages that
// share an upstream index fetch it once. Concurrent requests for the same
// key are collapsed into a single fetch. Failures are not cached.
type ListingCache struct {
	entries map[string]CacheEntry
	mu      sync.RWMutex
	group   singleflight.Group
	// nowFunc allows injecting time for testing
	nowFunc func() time.Time
}

// CacheOption is a functional option for configuring ListingCache
type CacheOption func(*ListingCache)

// WithNowFunc sets a custom time function for testing
func WithNowFunc(fn func() time.Time) CacheOption {
	return func(c *ListingCache) {
		c.nowFunc = fn
	}
}

// NewListingCache creates an empty cache.
func NewListingCache(opts ...CacheOption) *ListingCache {
	c := &ListingCache{
		entries: make(map[string]CacheEntry),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached entry for key.
func (c *ListingCache) Get(key string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Set stores entries under key.
func (c *ListingCache) Set(key string, entries []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = CacheEntry{Entries: entries, Timestamp: c.nowFunc()}
}

// Len returns the number of cached listings.
func (c *ListingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Do returns the cached listing for key, or calls fetch once for all
// concurrent callers and caches a successful result.
func (c *ListingCache) Do(key string, fetch func() ([]string, error)) ([]string, error) {
	if entry, ok := c.Get(key); ok {
		return entry.Entries, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if entry, ok := c.Get(key); ok {
			return entry.Entries, nil
		}
		entries, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Set(key, entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
