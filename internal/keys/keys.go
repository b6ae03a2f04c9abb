package keys

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/openfga/listquery/pkg/storage"
)

// cacheKeyHasher implements a key hash using Hash64 for computing cache keys in a stable way.
type cacheKeyHasher struct {
	hasher *xxhash.Digest
}

// NewCacheKeyHasher returns a hasher for string values.
func NewCacheKeyHasher(xhash *xxhash.Digest) *cacheKeyHasher {
	return &cacheKeyHasher{hasher: xhash}
}

// WriteString writes the provided string to the hash.
func (c *cacheKeyHasher) WriteString(value string) error {
	// WritesString always returns nil error
	_, _ = c.hasher.WriteString(value)

	return nil
}

// Key returns the stableCacheKey that this key hash defines.
func (c cacheKeyHasher) Key() stableCacheKey {
	return stableCacheKey{
		stableSum: c.hasher.Sum64(),
	}
}

type stableCacheKey struct {
	stableSum uint64
}

// ToUInt64 returns the cache key in the form of a stable uint64 value.
func (key stableCacheKey) ToUInt64() uint64 {
	return key.stableSum
}

// ListCacheKey returns the cache key of a list's schema.
func ListCacheKey(list storage.ListID) uint64 {
	h := NewCacheKeyHasher(xxhash.New())
	_ = NewListHasher(list).Append(h)
	return h.Key().ToUInt64()
}

// QueryFingerprint returns a short stable identifier of a query session, for logs. Sessions
// sending the same query to the same list but projecting different columns differ.
func QueryFingerprint(list storage.ListID, query string, columns []string) string {
	h := NewCacheKeyHasher(xxhash.New())
	_ = NewListHasher(list).Append(h)
	_ = h.WriteString("/query/" + query)
	_ = NewColumnsHasher(columns).Append(h)
	return strconv.FormatUint(h.Key().ToUInt64(), 16)
}
