// Package cache holds merged candidate pools between page requests.
package cache

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/pkg/metrics"
)

// Pool is a cached retrieval result: the merged candidates and the encoded
// source state that follows them.
type Pool struct {
	Items []model.Candidate
	Next  string
	More  bool
}

// PoolCache stores pools by key.
type PoolCache interface {
	Get(key string) (Pool, bool)
	Set(key string, p Pool)
}

// Key derives a cache key from the parts that determine a pool.
func Key(surface string, parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}
	return surface + ":" + strconv.FormatUint(d.Sum64(), 36)
}

// Noop never stores anything.
type Noop struct{}

// Get implements PoolCache.
func (Noop) Get(string) (Pool, bool) { return Pool{}, false }

// Set implements PoolCache.
func (Noop) Set(string, Pool) {}

// TTL expires pools after a fixed time.
type TTL struct {
	c *gocache.Cache
}

// NewTTL returns a TTL cache. Expired entries are swept every 2*ttl.
func NewTTL(ttl time.Duration) *TTL {
	return &TTL{c: gocache.New(ttl, 2*ttl)}
}

// Get implements PoolCache.
func (t *TTL) Get(key string) (Pool, bool) {
	v, ok := t.c.Get(key)
	metrics.RecordPoolCacheLookup(ok)
	if !ok {
		return Pool{}, false
	}
	p, ok := v.(Pool)
	if !ok {
		return Pool{}, false
	}
	return clonePool(p), true
}

// Set implements PoolCache.
func (t *TTL) Set(key string, p Pool) {
	t.c.SetDefault(key, clonePool(p))
}

// Len returns the number of live entries.
func (t *TTL) Len() int { return t.c.ItemCount() }

func clonePool(p Pool) Pool {
	p.Items = append([]model.Candidate(nil), p.Items...)
	return p
}

// New returns a TTL cache for positive ttl and Noop otherwise.
func New(ttl time.Duration) PoolCache {
	if ttl <= 0 {
		return Noop{}
	}
	return NewTTL(ttl)
}

// Describe renders the cache kind for logs.
func Describe(c PoolCache) string {
	switch v := c.(type) {
	case *TTL:
		return "ttl(" + strconv.Itoa(v.Len()) + " entries)"
	default:
		return "noop"
	}
}
