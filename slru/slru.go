// Package slru implements the Sized-LRU Cache: a bounded-capacity cache
// where every entry declares a consumption weight against a fixed budget.
// Inserts that would overflow the budget evict least-recently-used buckets
// until the new entry fits, or fail with DoesntFit if it never will. This is
// policy v1: per-bucket LRU, O(1) amortized, power-of-two hash sizing.
package slru

import (
	"bytes"

	"github.com/aarni57/lrutrack"
	"github.com/aarni57/lrutrack/internal/arena"
	"github.com/aarni57/lrutrack/internal/buckets"
	"github.com/aarni57/lrutrack/internal/murmur"
)

// item is the per-slot payload. consumption == 0 is the free-slot sentinel.
// Fetch takes its miss sentinel per-call instead of a construction-time
// invalid value.
type item struct {
	key         []byte
	value       uint32
	consumption uint16
}

// Config configures a Cache. HashTableSize, CacheSize and EvictFunc are
// required.
type Config struct {
	// HashTableSize is the number of buckets; must be a power of two.
	HashTableSize uint32
	// CacheSize is the fixed consumption budget, ≥ 1.
	CacheSize uint64
	// EvictFunc is invoked synchronously whenever a value leaves the cache,
	// whether by explicit Remove, budget-driven eviction, RemoveLRU, or
	// RemoveAll/Close.
	EvictFunc lrutrack.EvictFunc
	EvictUser interface{}

	NumInitialItems uint32
	HashSeed        uint32
	Allocator       lrutrack.Allocator
}

// Option mutates a Config before construction.
type Option func(*Config)

func WithNumInitialItems(n uint32) Option { return func(c *Config) { c.NumInitialItems = n } }
func WithHashSeed(seed uint32) Option     { return func(c *Config) { c.HashSeed = seed } }
func WithAllocator(a lrutrack.Allocator) Option {
	return func(c *Config) { c.Allocator = a }
}

// Cache is the SLRU handle. The zero value is not usable; build one with
// New.
type Cache struct {
	cfg       Config
	arena     *arena.Arena[item]
	table     *buckets.Table
	alloc     lrutrack.Allocator
	count     int
	cacheLeft uint64
	lastErr   error
}

// New constructs a Cache. hashTableSize must be a power of two, cacheSize
// must be >= 1, and evictFunc must be non-nil; violations return
// Result(ErrorResult).
func New(hashTableSize uint32, cacheSize uint64, evictFunc lrutrack.EvictFunc, opts ...Option) (*Cache, error) {
	cfg := Config{
		HashTableSize: hashTableSize,
		CacheSize:     cacheSize,
		EvictFunc:     evictFunc,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig constructs a Cache from a fully assembled Config.
func NewWithConfig(cfg Config) (*Cache, error) {
	if cfg.EvictFunc == nil || cfg.CacheSize == 0 {
		return nil, lrutrack.ErrorResult
	}
	if cfg.Allocator == nil {
		cfg.Allocator = lrutrack.DefaultAllocator{}
	}

	table, err := buckets.New(cfg.HashTableSize, true)
	if err != nil {
		return nil, lrutrack.ErrorResult
	}

	a := arena.New[item](cfg.NumInitialItems, cfg.HashTableSize, cfg.Allocator)

	return &Cache{
		cfg:       cfg,
		arena:     a,
		table:     table,
		alloc:     cfg.Allocator,
		cacheLeft: cfg.CacheSize,
	}, nil
}

func (c *Cache) hash(key []byte) uint32 {
	return murmur.Hash32(key, c.cfg.HashSeed)
}

// Len returns the number of keys currently cached. Non-mutating.
func (c *Cache) Len() int { return c.count }

// Remaining returns cache_left: the unconsumed portion of the budget.
// Non-mutating. Σ consumption + Remaining() == CacheSize holds after every
// operation.
func (c *Cache) Remaining() uint64 { return c.cacheLeft }

// LastError returns the detailed error behind the most recent OOM result,
// or nil if no OOM has occurred yet. For a failed arena growth it carries
// the captured stack; for a failed key-buffer allocation it is the
// allocator's own error.
func (c *Cache) LastError() error { return c.lastErr }

// Insert adds key -> value at the given consumption weight, evicting
// LRU-tail buckets until the budget can accommodate it. If the budget still
// cannot fit the item once the cache is entirely empty, every entry has
// already been evicted (EvictFunc fires for each) and DoesntFit is
// returned.
func (c *Cache) Insert(key []byte, value uint32, consumption uint16) lrutrack.Result {
	if len(key) == 0 || consumption == 0 {
		return lrutrack.ErrorResult
	}

	need := uint64(consumption)
	for c.cacheLeft < need {
		if c.table.LRUEmpty() {
			return lrutrack.DoesntFit
		}
		c.evictLRUBucket()
	}

	b := c.table.Index(c.hash(key))
	wasEmpty := c.table.Empty(b)

	idx, err := c.arena.Alloc()
	if err != nil {
		c.lastErr = err
		return lrutrack.OOM
	}

	keyBuf, err := c.alloc.Alloc(len(key))
	if err != nil {
		// Release the slot we just took rather than leak it off the free list.
		c.arena.Release(idx)
		c.lastErr = err
		return lrutrack.OOM
	}
	copy(keyBuf, key)

	it := c.arena.Get(idx)
	it.key = keyBuf
	it.value = value
	it.consumption = consumption

	c.arena.SetNext(idx, c.table.Head(b))
	c.table.SetHead(b, idx)
	c.count++
	c.cacheLeft -= need

	if wasEmpty {
		c.table.Attach(b)
	} else {
		c.table.Promote(b)
	}

	return lrutrack.OK
}

func (c *Cache) findInBucket(b uint32, key []byte) (idx, prevIdx uint32, found bool) {
	prevIdx = arena.Null
	idx = c.table.Head(b)
	for idx != arena.Null {
		if bytes.Equal(c.arena.Get(idx).key, key) {
			return idx, prevIdx, true
		}
		prevIdx = idx
		idx = c.arena.Next(idx)
	}
	return arena.Null, arena.Null, false
}

// Fetch returns the value stored for key, promoting its bucket to the LRU
// head. On a miss it returns invalidValue, supplied per-call, and makes no
// state change.
func (c *Cache) Fetch(key []byte, invalidValue uint32) uint32 {
	b := c.table.Index(c.hash(key))
	idx, _, found := c.findInBucket(b, key)
	if !found {
		return invalidValue
	}
	c.table.Promote(b)
	return c.arena.Get(idx).value
}

// Remove deletes key if present, invoking EvictFunc on its value and
// restoring its consumption to the budget. Returns NotFound with no side
// effects if key is absent.
func (c *Cache) Remove(key []byte) lrutrack.Result {
	b := c.table.Index(c.hash(key))
	idx, prevIdx, found := c.findInBucket(b, key)
	if !found {
		return lrutrack.NotFound
	}

	c.unlinkFromChain(b, idx, prevIdx)
	c.cfg.EvictFunc(c.cfg.EvictUser, c.arena.Get(idx).value)
	c.freeItem(idx)
	c.count--

	if c.table.Empty(b) {
		c.table.Detach(b)
	}
	return lrutrack.OK
}

func (c *Cache) unlinkFromChain(b, idx, prevIdx uint32) {
	next := c.arena.Next(idx)
	if prevIdx == arena.Null {
		c.table.SetHead(b, next)
	} else {
		c.arena.SetNext(prevIdx, next)
	}
}

func (c *Cache) freeItem(idx uint32) {
	it := c.arena.Get(idx)
	c.alloc.Free(it.key)
	c.cacheLeft += uint64(it.consumption)
	it.key = nil
	it.value = 0
	it.consumption = 0
	c.arena.Release(idx)
}

// evictLRUBucket evicts every item in the LRU-tail bucket. Caller must have
// already checked the LRU list is non-empty.
func (c *Cache) evictLRUBucket() {
	b := c.table.LRUTail()
	c.table.Detach(b)

	idx := c.table.Head(b)
	c.table.SetHead(b, arena.Null)
	for idx != arena.Null {
		next := c.arena.Next(idx)
		it := c.arena.Get(idx)
		c.cfg.EvictFunc(c.cfg.EvictUser, it.value)
		c.freeItem(idx)
		c.count--
		idx = next
	}
}

// RemoveLRU evicts every item in the LRU-tail bucket at once. Returns
// NotFound if the LRU list is empty.
func (c *Cache) RemoveLRU() lrutrack.Result {
	if c.table.LRUEmpty() {
		return lrutrack.NotFound
	}
	c.evictLRUBucket()
	return lrutrack.OK
}

// RemoveAll evicts every cached key, invoking EvictFunc for each, resets the
// table and arena to an empty state, and restores the full budget.
func (c *Cache) RemoveAll() {
	for b := uint32(0); b < c.cfg.HashTableSize; b++ {
		idx := c.table.Head(b)
		for idx != arena.Null {
			next := c.arena.Next(idx)
			it := c.arena.Get(idx)
			c.cfg.EvictFunc(c.cfg.EvictUser, it.value)
			c.alloc.Free(it.key)
			idx = next
		}
	}

	c.table.Reset()
	c.arena.ResetAll()
	c.count = 0
	c.cacheLeft = c.cfg.CacheSize
}

// Close invokes EvictFunc for every in-use slot, in arena-index order rather
// than LRU order.
func (c *Cache) Close() {
	for idx := uint32(0); idx < c.arena.Cap(); idx++ {
		it := c.arena.Get(idx)
		if it.consumption == 0 {
			continue
		}
		c.cfg.EvictFunc(c.cfg.EvictUser, it.value)
		c.alloc.Free(it.key)
	}
	c.count = 0
	c.cacheLeft = c.cfg.CacheSize
}
