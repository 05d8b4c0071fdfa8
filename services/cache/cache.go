package cache

import "time"

// CacheService defines the interface for the scrape politeness cache.
// The scraper sets a block key per target host after a rate-limit response
// so subsequent passes skip that host until the key expires.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// BlockKey builds the cache key used to mark a host as rate limited.
func BlockKey(host string) string {
	return "block:" + host
}
