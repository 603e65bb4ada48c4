package landmask

import (
	"container/list"
	"sync"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	"github.com/couchcryptid/humidity-tiles-etl/internal/observability"
)

// CachedOracle wraps a LandOracle with an in-memory LRU cache. Every month of
// a regular grid asks about the same coordinates, so after the first month
// nearly every lookup is a hit.
type CachedOracle struct {
	inner   domain.LandOracle
	cache   *lruCache[coord, bool]
	metrics *observability.Metrics
}

// NewCachedOracle creates a cache decorator around an oracle.
func NewCachedOracle(inner domain.LandOracle, maxEntries int, metrics *observability.Metrics) *CachedOracle {
	return &CachedOracle{
		inner:   inner,
		cache:   newLRUCache[coord, bool](maxEntries),
		metrics: metrics,
	}
}

// IsLand answers from the cache when the exact coordinate was seen before,
// otherwise asks the wrapped oracle and remembers the answer.
func (c *CachedOracle) IsLand(lat, lon float64) bool {
	key := coord{lat: lat, lon: lon}
	if land, ok := c.cache.get(key); ok {
		c.metrics.LandCache.WithLabelValues("hit").Inc()
		return land
	}
	c.metrics.LandCache.WithLabelValues("miss").Inc()
	land := c.inner.IsLand(lat, lon)
	c.cache.put(key, land)
	return land
}

type coord struct {
	lat, lon float64
}

// lruCache is a bounded map that evicts the least recently used key. A
// container/list keeps recency order; the map indexes into it.
type lruCache[K comparable, V any] struct {
	mu    sync.Mutex
	limit int
	order *list.List
	items map[K]*list.Element
}

type lruItem[K comparable, V any] struct {
	key   K
	value V
}

func newLRUCache[K comparable, V any](limit int) *lruCache[K, V] {
	return &lruCache[K, V]{
		limit: limit,
		order: list.New(),
		items: make(map[K]*list.Element),
	}
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem[K, V]).value, true
}

func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&lruItem[K, V]{key: key, value: value})
	for c.limit > 0 && c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruItem[K, V]).key)
	}
}

func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
