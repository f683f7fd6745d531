// Package poolcache holds the latest decoded pool states between passes.
// Entries go stale when their TTL elapses or when a push update marks them
// dirty; stale pools stay visible but are excluded from search.
package poolcache

import (
	"sort"
	"sync"
	"time"

	"solana-arb-engine/internal/domain"
)

type entry struct {
	pool     *domain.PoolState
	storedAt time.Time
	dirty    bool
}

// Cache is a concurrency-safe pool state cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[domain.Address]*entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a Cache. A zero ttl never expires entries.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[domain.Address]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores freshly decoded pools and clears their dirty flags.
func (c *Cache) Put(pools ...*domain.PoolState) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range pools {
		if p == nil {
			continue
		}
		cp := *p
		c.entries[p.Address] = &entry{pool: &cp, storedAt: now}
	}
}

// MarkDirty flags a pool for refresh. It reports whether the pool is cached.
func (c *Cache) MarkDirty(addr domain.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[addr]
	if ok {
		e.dirty = true
	}
	return ok
}

// Remove drops a pool.
func (c *Cache) Remove(addr domain.Address) {
	c.mu.Lock()
	delete(c.entries, addr)
	c.mu.Unlock()
}

// Get returns a copy of a cached pool, stale or not.
func (c *Cache) Get(addr domain.Address) (*domain.PoolState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[addr]
	if !ok {
		return nil, false
	}
	cp := *e.pool
	return &cp, true
}

// Len returns the number of cached pools.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stale returns the sorted addresses of pools needing a refresh.
func (c *Cache) Stale() []domain.Address {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.Address
	for addr, e := range c.entries {
		if c.isStale(e, now) {
			out = append(out, addr)
		}
	}
	sortAddresses(out)
	return out
}

func (c *Cache) isStale(e *entry, now time.Time) bool {
	if e.dirty {
		return true
	}
	return c.ttl > 0 && now.Sub(e.storedAt) > c.ttl
}

// Snapshot freezes the cache for one search pass.
func (c *Cache) Snapshot() *Snapshot {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := &Snapshot{
		pools: make([]*domain.PoolState, 0, len(c.entries)),
		stale: make(map[domain.Address]bool),
	}
	for addr, e := range c.entries {
		cp := *e.pool
		s.pools = append(s.pools, &cp)
		if c.isStale(e, now) {
			s.stale[addr] = true
		}
	}
	sort.Slice(s.pools, func(i, j int) bool {
		return s.pools[i].Address.String() < s.pools[j].Address.String()
	})
	return s
}

// Snapshot is an immutable view of the cache. It satisfies search.PoolSet.
type Snapshot struct {
	pools []*domain.PoolState
	stale map[domain.Address]bool
}

// Pools returns every pool of the snapshot, ordered by address.
func (s *Snapshot) Pools() []*domain.PoolState { return s.pools }

// IsStale reports whether addr was stale when the snapshot was taken.
func (s *Snapshot) IsStale(addr domain.Address) bool { return s.stale[addr] }

// StaleCount returns the number of stale pools in the snapshot.
func (s *Snapshot) StaleCount() int { return len(s.stale) }

func sortAddresses(a []domain.Address) {
	sort.Slice(a, func(i, j int) bool { return a[i].String() < a[j].String() })
}
