package openmeteo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
)

// CachedFetcher wraps a WeatherFetcher with an in-memory LRU cache.
// Cached responses are shared; callers must treat them as read-only.
type CachedFetcher struct {
	inner   domain.WeatherFetcher
	cache   *lruCache[domain.HourlyData]
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner domain.WeatherFetcher, maxEntries int, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache[domain.HourlyData](maxEntries),
		metrics: metrics,
	}
}

// FetchHourly implements domain.WeatherFetcher. The archive answers in whole
// days, so requests are keyed by rounded coordinates and the UTC date span.
func (c *CachedFetcher) FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (domain.HourlyData, error) {
	key := fmt.Sprintf("%.4f,%.4f|%s|%s", lat, lon, start.UTC().Format(dateLayout), end.UTC().Format(dateLayout))
	if data, ok := c.cache.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return data, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	data, err := c.inner.FetchHourly(ctx, lat, lon, start, end)
	if err != nil {
		return data, err
	}
	// Synthetic fallbacks are not cached so the next request retries the archive.
	if !data.Synthetic {
		c.cache.put(key, data)
	}
	return data, nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
