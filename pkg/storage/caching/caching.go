// Package caching caches list schemas in front of a storage.SchemaResolver.
package caching

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Yiling-J/theine-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/openfga/listquery/internal/keys"
	"github.com/openfga/listquery/pkg/storage"
)

const (
	defaultMaxSize = 1000
	defaultTTL     = 10 * time.Minute
)

var schemaCacheCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "listquery",
	Name:      "schema_cache_lookups_total",
	Help:      "The total number of schema cache lookups, by result.",
}, []string{"result"})

var _ storage.SchemaResolver = (*CachedSchemaResolver)(nil)

// CachedSchemaResolver caches the fields of up to maxSize lists for ttl. Concurrent misses for
// the same list share one call to the wrapped resolver. Errors are not cached.
type CachedSchemaResolver struct {
	storage.SchemaResolver
	lookupGroup singleflight.Group
	cache       *theine.Cache[uint64, []storage.Field]
	maxSize     int64
	ttl         time.Duration
}

// CachedSchemaResolverOpt defines a function type used for configuring a [CachedSchemaResolver].
type CachedSchemaResolverOpt func(*CachedSchemaResolver)

// WithMaxSize sets the maximum number of cached lists.
func WithMaxSize(n int64) CachedSchemaResolverOpt {
	return func(c *CachedSchemaResolver) {
		c.maxSize = n
	}
}

// WithTTL sets how long a list's fields are cached.
func WithTTL(ttl time.Duration) CachedSchemaResolverOpt {
	return func(c *CachedSchemaResolver) {
		c.ttl = ttl
	}
}

// NewCachedSchemaResolver returns a wrapper over a schema resolver that caches the fields
// returned for each list.
func NewCachedSchemaResolver(inner storage.SchemaResolver, opts ...CachedSchemaResolverOpt) (*CachedSchemaResolver, error) {
	c := &CachedSchemaResolver{
		SchemaResolver: inner,
		maxSize:        defaultMaxSize,
		ttl:            defaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	cache, err := theine.NewBuilder[uint64, []storage.Field](c.maxSize).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build schema cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

// Fields see [storage.SchemaResolver].Fields. The returned slice is a copy and may be modified.
func (c *CachedSchemaResolver) Fields(ctx context.Context, list storage.ListID) ([]storage.Field, error) {
	cacheKey := keys.ListCacheKey(list)
	if fields, ok := c.cache.Get(cacheKey); ok {
		schemaCacheCounter.WithLabelValues("hit").Inc()
		return slices.Clone(fields), nil
	}
	schemaCacheCounter.WithLabelValues("miss").Inc()

	v, err, _ := c.lookupGroup.Do(fmt.Sprintf("Fields:%d", cacheKey), func() (interface{}, error) {
		return c.SchemaResolver.Fields(ctx, list)
	})
	if err != nil {
		return nil, err
	}

	fields := v.([]storage.Field)
	c.cache.SetWithTTL(cacheKey, fields, 1, c.ttl)

	return slices.Clone(fields), nil
}

// Invalidate drops the cached fields of a list, e.g. after its schema changed.
func (c *CachedSchemaResolver) Invalidate(list storage.ListID) {
	c.cache.Delete(keys.ListCacheKey(list))
}

// Close releases the cache's resources.
func (c *CachedSchemaResolver) Close() {
	c.cache.Close()
}
