// Package cache – artifact cache
//
// This file implements the process-wide artifact cache that maps a
// domain.CacheKey to generated STL bytes. Generation for a key runs at most
// once at a time: concurrent callers for the same key join the in-flight call
// (golang.org/x/sync/singleflight) and receive identical bytes. Failures are
// returned to every joined caller and never stored, so the next request for
// that key retries generation.
//
// Entries live in memory for the process lifetime unless a capacity policy is
// configured (WithMaxEntries), in which case least-recently-used entries are
// evicted. An optional second-level Store (SQLite or Redis) makes entries
// survive restarts or be shared between replicas; store failures degrade to
// cache misses and are only logged.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

// Entry is an immutable cached artifact.
type Entry struct {
	Data        []byte
	ContentType string
}

// Store is a second-level artifact store consulted on memory misses.
type Store interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key domain.CacheKey) (Entry, bool, error)
	// Put persists an entry. Implementations must tolerate duplicate puts.
	Put(ctx context.Context, key domain.CacheKey, e Entry) error
}

// GenerateFunc produces the artifact for a missing key.
type GenerateFunc func(ctx context.Context) (Entry, error)

// index is the in-memory eviction policy. Callers hold Cache.mu.
type index interface {
	get(key domain.CacheKey) (Entry, bool)
	add(key domain.CacheKey, e Entry)
	len() int
}

// unbounded keeps every entry.
type unbounded map[domain.CacheKey]Entry

func (u unbounded) get(k domain.CacheKey) (Entry, bool) { e, ok := u[k]; return e, ok }
func (u unbounded) add(k domain.CacheKey, e Entry)      { u[k] = e }
func (u unbounded) len() int                            { return len(u) }

// bounded evicts the least recently used entry beyond its capacity.
type bounded struct{ c *lru.Cache }

func (b bounded) get(k domain.CacheKey) (Entry, bool) {
	v, ok := b.c.Get(k)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}
func (b bounded) add(k domain.CacheKey, e Entry) { b.c.Add(k, e) }
func (b bounded) len() int                       { return b.c.Len() }

// Cache is safe for concurrent use. The zero value is not usable; call New.
type Cache struct {
	mu      sync.Mutex
	entries index
	group   singleflight.Group
	store   Store
	timeout time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries bounds the in-memory cache with LRU eviction. n <= 0 keeps
// the default unbounded policy.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n <= 0 {
			return
		}
		l := lru.New(n)
		l.OnEvicted = func(lru.Key, interface{}) { cacheEvictions.Inc() }
		c.entries = bounded{c: l}
	}
}

// WithStore attaches a second-level store.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithGenerateTimeout bounds each shared generation. d <= 0 leaves it
// unbounded.
func WithGenerateTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// New constructs a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{entries: unbounded{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get looks key up without generating. The second-level store is consulted
// on a memory miss and hits are promoted into memory.
func (c *Cache) Get(ctx context.Context, key domain.CacheKey) (Entry, bool) {
	if e, ok := c.memGet(key); ok {
		return e, true
	}
	if c.store == nil {
		return Entry{}, false
	}
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", string(key)).Msg("artifact store get failed")
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}
	c.memAdd(key, e)
	return e, true
}

// GetOrCreate returns the entry for key, generating it with fn on a miss.
// Only one fn runs per key at a time. fn gets a context that keeps the values
// of the caller that started the flight but none of its cancellation, bounded
// by the generation timeout. A caller whose ctx ends while waiting returns
// ctx.Err() and the generation carries on for the others.
func (c *Cache) GetOrCreate(ctx context.Context, key domain.CacheKey, fn GenerateFunc) (Entry, error) {
	if e, ok := c.memGet(key); ok {
		cacheHits.Inc()
		return e, nil
	}

	ch := c.group.DoChan(string(key), func() (interface{}, error) {
		gctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			gctx, cancel = context.WithTimeout(gctx, c.timeout)
			defer cancel()
		}

		// Re-check: a previous flight may have finished between memGet and
		// joining the group.
		if e, ok := c.Get(gctx, key); ok {
			cacheHits.Inc()
			return e, nil
		}
		cacheMisses.Inc()
		e, err := fn(gctx)
		if err != nil {
			cacheGenerations.WithLabelValues("error").Inc()
			return Entry{}, err
		}
		cacheGenerations.WithLabelValues("ok").Inc()
		c.memAdd(key, e)
		if c.store != nil {
			if err := c.store.Put(gctx, key, e); err != nil {
				log.Warn().Err(err).Str("key", string(key)).Msg("artifact store put failed")
			}
		}
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// Len reports the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.len()
}

func (c *Cache) memGet(key domain.CacheKey) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.get(key)
}

func (c *Cache) memAdd(key domain.CacheKey, e Entry) {
	c.mu.Lock()
	c.entries.add(key, e)
	n := c.entries.len()
	c.mu.Unlock()
	cacheEntries.Set(float64(n))
}
