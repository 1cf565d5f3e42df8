// Package cache holds validated queries keyed by normalized question text.
// Concurrent requests for the same key coalesce into a single generation
// pass; eviction is TTL-first, then least-recently-used under a capacity
// bound. Only accepted verdicts are ever stored, so a served hit already
// satisfies every validator invariant.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/metrics"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/validator"
)

// Key builds the cache key for a question. Case and interior whitespace do
// not change the answer, so they do not change the key; the whitelist
// version is folded in so a whitelist change invalidates by construction.
func Key(question, whitelistVersion string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	return normalized + "|" + whitelistVersion
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Entries   int    `json:"entries"`
	Evictions uint64 `json:"evictions"`
}

// Config bounds cache behavior.
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// GenerateFunc produces a validated query on a cache miss.
type GenerateFunc func(ctx context.Context) (validator.ValidatedQuery, error)

type entry struct {
	key      string
	query    validator.ValidatedQuery
	cachedAt time.Time
}

// flight is an in-progress generation pass that followers wait on.
type flight struct {
	done  chan struct{}
	query validator.ValidatedQuery
	err   error
}

// QueryCache is a TTL+LRU cache with per-key single-flight semantics.
type QueryCache struct {
	mu       sync.Mutex
	config   Config
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	inflight map[string]*flight

	hits      uint64
	misses    uint64
	evictions uint64

	now    func() time.Time
	logger *logging.Logger
}

// New creates an empty cache.
func New(config Config, logger *logging.Logger) *QueryCache {
	return &QueryCache{
		config:   config,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		inflight: make(map[string]*flight),
		now:      time.Now,
		logger:   logger,
	}
}

// GetOrGenerate returns the cached query for key, or runs generate exactly
// once per key across concurrent callers and caches an accepted result.
// The hit flag reports whether the result came from the cache; a follower
// that waited on another caller's generation pass reports a miss.
func (c *QueryCache) GetOrGenerate(ctx context.Context, key string, generate GenerateFunc) (validator.ValidatedQuery, bool, error) {
	c.mu.Lock()

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry)

		if c.now().Sub(ent.cachedAt) < c.config.TTL {
			c.order.MoveToFront(elem)
			c.hits++
			c.mu.Unlock()

			metrics.CacheLookups.WithLabelValues("hit").Inc()

			return ent.query, true, nil
		}

		c.removeLocked(elem, "ttl")
	}

	if f, ok := c.inflight[key]; ok {
		c.misses++
		c.mu.Unlock()

		metrics.CacheLookups.WithLabelValues("miss").Inc()

		select {
		case <-f.done:
			return f.query, false, f.err
		case <-ctx.Done():
			return validator.ValidatedQuery{}, false,
				errors.Wrap(ctx.Err(), errors.ErrTypeInternal, "canceled while waiting for in-flight generation")
		}
	}

	f := &flight{done: make(chan struct{})}
	c.inflight[key] = f
	c.misses++
	c.mu.Unlock()

	metrics.CacheLookups.WithLabelValues("miss").Inc()

	f.query, f.err = generate(ctx)

	c.mu.Lock()
	delete(c.inflight, key)

	if f.err == nil && f.query.Accepted {
		c.putLocked(key, f.query)
	}

	c.mu.Unlock()
	close(f.done)

	return f.query, false, f.err
}

// putLocked inserts an entry, evicting expired entries first and then the
// least-recently-used entry to stay within capacity.
func (c *QueryCache) putLocked(key string, query validator.ValidatedQuery) {
	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry)
		ent.query = query
		ent.cachedAt = c.now()
		c.order.MoveToFront(elem)

		return
	}

	if c.order.Len() >= c.config.MaxEntries {
		c.evictExpiredLocked()
	}

	for c.order.Len() >= c.config.MaxEntries {
		c.removeLocked(c.order.Back(), "capacity")
	}

	elem := c.order.PushFront(&entry{
		key:      key,
		query:    query,
		cachedAt: c.now(),
	})
	c.entries[key] = elem
}

func (c *QueryCache) evictExpiredLocked() {
	var expired []*list.Element

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if c.now().Sub(elem.Value.(*entry).cachedAt) >= c.config.TTL {
			expired = append(expired, elem)
		}
	}

	for _, elem := range expired {
		c.removeLocked(elem, "ttl")
	}
}

func (c *QueryCache) removeLocked(elem *list.Element, cause string) {
	ent := elem.Value.(*entry)
	delete(c.entries, ent.key)
	c.order.Remove(elem)
	c.evictions++

	metrics.CacheEvictions.WithLabelValues(cause).Inc()
}

// InvalidateAll clears every entry. In-flight generations are unaffected;
// their results land in the fresh cache when they complete.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := c.order.Len()

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		delete(c.entries, elem.Value.(*entry).key)
	}

	c.order.Init()
	c.evictions += uint64(cleared)

	metrics.CacheEvictions.WithLabelValues("reset").Add(float64(cleared))

	c.logger.WithField("cleared", cleared).Info("query cache invalidated")
}

// Stats returns a snapshot of the cache counters.
func (c *QueryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Entries:   c.order.Len(),
		Evictions: c.evictions,
	}
}
