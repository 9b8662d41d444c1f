package cache

import "time"

// Cache defines a minimal key-value cache API with a TTL per entry.
// Expired entries are never returned; they stay in place until overwritten.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key K) (V, bool)

	// Set stores the value for ttl. If ttl <= 0, the entry does not expire.
	Set(key K, value V, ttl time.Duration)

	// Len returns the number of non-expired items currently stored.
	Len() int

	// Range calls fn for every non-expired entry until fn returns false.
	Range(fn func(key K, value V, storedAt time.Time) bool)
}
