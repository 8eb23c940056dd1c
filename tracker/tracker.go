// Package tracker implements the LRU-Tracker: an unbounded set of keys
// tagged with a small opaque value, supporting insertion, lookup-with-
// promotion, explicit removal, and bulk eviction of the least-recently-used
// bucket. Capacity is unlimited; eviction is caller-driven via RemoveLRU.
package tracker

import (
	"bytes"

	"github.com/aarni57/lrutrack"
	"github.com/aarni57/lrutrack/internal/arena"
	"github.com/aarni57/lrutrack/internal/buckets"
	"github.com/aarni57/lrutrack/internal/murmur"
)

// item is the per-slot payload. The bucket-chain/free-list link itself
// lives in the arena, not here.
type item struct {
	key   []byte
	value uint32
	// inUse distinguishes a live slot from a never-allocated or released
	// one independent of the caller's chosen InvalidValue, whose zero
	// value might coincide with a freshly zeroed slot's value field.
	inUse bool
}

// Config configures a Tracker. HashTableSize, EvictFunc are required;
// HashSeed, InvalidValue, NumInitialItems, Allocator, EvictUser are
// optional (see the With* options).
type Config struct {
	// HashTableSize is the number of buckets; must be a power of two.
	HashTableSize uint32
	// EvictFunc is invoked synchronously whenever a value leaves the
	// cache. Required.
	EvictFunc lrutrack.EvictFunc
	// EvictUser is passed through to EvictFunc unchanged.
	EvictUser interface{}

	NumInitialItems uint32
	HashSeed        uint32
	// InvalidValue is returned by Lookup on a miss and is rejected by
	// Insert. Must never collide with a real value the caller inserts.
	// Free slots are marked by item.inUse, not by this value.
	InvalidValue uint32
	Allocator    lrutrack.Allocator
}

// Option mutates a Config before construction.
type Option func(*Config)

func WithNumInitialItems(n uint32) Option { return func(c *Config) { c.NumInitialItems = n } }
func WithHashSeed(seed uint32) Option     { return func(c *Config) { c.HashSeed = seed } }
func WithInvalidValue(v uint32) Option    { return func(c *Config) { c.InvalidValue = v } }
func WithAllocator(a lrutrack.Allocator) Option {
	return func(c *Config) { c.Allocator = a }
}

// Tracker is the LRU-Tracker handle. The zero value is not usable; build
// one with New.
type Tracker struct {
	cfg     Config
	arena   *arena.Arena[item]
	table   *buckets.Table
	alloc   lrutrack.Allocator
	count   int
	lastErr error
}

// New constructs a Tracker. HashTableSize must be a power of two and
// EvictFunc must be non-nil; violations are reported as
// Result(ErrorResult).
func New(hashTableSize uint32, evictFunc lrutrack.EvictFunc, opts ...Option) (*Tracker, error) {
	cfg := Config{
		HashTableSize: hashTableSize,
		EvictFunc:     evictFunc,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig constructs a Tracker from a fully assembled Config.
func NewWithConfig(cfg Config) (*Tracker, error) {
	if cfg.EvictFunc == nil {
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

	return &Tracker{
		cfg:   cfg,
		arena: a,
		table: table,
		alloc: cfg.Allocator,
	}, nil
}

func (t *Tracker) hash(key []byte) uint32 {
	return murmur.Hash32(key, t.cfg.HashSeed)
}

// Len returns the number of keys currently tracked. Non-mutating.
func (t *Tracker) Len() int { return t.count }

// LastError returns the detailed error behind the most recent OOM result,
// or nil if no OOM has occurred yet. For a failed arena growth it carries
// the captured stack; for a failed key-buffer allocation it is the
// allocator's own error. Result(OOM) itself carries no detail beyond the
// code; this is where a caller goes to find out more.
func (t *Tracker) LastError() error { return t.lastErr }

// Insert adds key -> value. The caller must ensure key is not already
// present and value != InvalidValue. Insert promotes key's bucket to the
// LRU head.
func (t *Tracker) Insert(key []byte, value uint32) lrutrack.Result {
	if len(key) == 0 || value == t.cfg.InvalidValue {
		return lrutrack.ErrorResult
	}

	b := t.table.Index(t.hash(key))
	wasEmpty := t.table.Empty(b)

	idx, err := t.arena.Alloc()
	if err != nil {
		t.lastErr = err
		return lrutrack.OOM
	}

	keyBuf, err := t.alloc.Alloc(len(key))
	if err != nil {
		// Release the slot we just took rather than leak it off the free list.
		t.arena.Release(idx)
		t.lastErr = err
		return lrutrack.OOM
	}
	copy(keyBuf, key)

	it := t.arena.Get(idx)
	it.key = keyBuf
	it.value = value
	it.inUse = true

	t.arena.SetNext(idx, t.table.Head(b))
	t.table.SetHead(b, idx)
	t.count++

	if wasEmpty {
		t.table.Attach(b)
	} else {
		t.table.Promote(b)
	}

	return lrutrack.OK
}

// findInBucket walks bucket b's chain looking for key, returning the arena
// index, the index of its predecessor in the chain (or arena.Null if it is
// the head), and whether it was found.
func (t *Tracker) findInBucket(b uint32, key []byte) (idx, prevIdx uint32, found bool) {
	prevIdx = arena.Null
	idx = t.table.Head(b)
	for idx != arena.Null {
		if bytes.Equal(t.arena.Get(idx).key, key) {
			return idx, prevIdx, true
		}
		prevIdx = idx
		idx = t.arena.Next(idx)
	}
	return arena.Null, arena.Null, false
}

// Lookup returns the value stored for key, promoting its bucket to the LRU
// head. On a miss it returns InvalidValue and makes no state change.
func (t *Tracker) Lookup(key []byte) uint32 {
	b := t.table.Index(t.hash(key))
	idx, _, found := t.findInBucket(b, key)
	if !found {
		return t.cfg.InvalidValue
	}
	t.table.Promote(b)
	return t.arena.Get(idx).value
}

// Remove deletes key if present, invoking EvictFunc on its value. Returns
// NotFound with no side effects if key is absent.
func (t *Tracker) Remove(key []byte) lrutrack.Result {
	b := t.table.Index(t.hash(key))
	idx, prevIdx, found := t.findInBucket(b, key)
	if !found {
		return lrutrack.NotFound
	}

	t.unlinkFromChain(b, idx, prevIdx)
	t.cfg.EvictFunc(t.cfg.EvictUser, t.arena.Get(idx).value)
	t.freeItem(idx)
	t.count--

	if t.table.Empty(b) {
		t.table.Detach(b)
	}
	return lrutrack.OK
}

func (t *Tracker) unlinkFromChain(b, idx, prevIdx uint32) {
	next := t.arena.Next(idx)
	if prevIdx == arena.Null {
		t.table.SetHead(b, next)
	} else {
		t.arena.SetNext(prevIdx, next)
	}
}

func (t *Tracker) freeItem(idx uint32) {
	it := t.arena.Get(idx)
	t.alloc.Free(it.key)
	it.key = nil
	it.value = t.cfg.InvalidValue
	it.inUse = false
	t.arena.Release(idx)
}

// RemoveLRU evicts every item in the LRU-tail bucket at once. Returns
// NotFound if the LRU list is empty.
func (t *Tracker) RemoveLRU() lrutrack.Result {
	if t.table.LRUEmpty() {
		return lrutrack.NotFound
	}
	b := t.table.LRUTail()
	t.table.Detach(b)

	idx := t.table.Head(b)
	t.table.SetHead(b, arena.Null)
	for idx != arena.Null {
		next := t.arena.Next(idx)
		it := t.arena.Get(idx)
		t.cfg.EvictFunc(t.cfg.EvictUser, it.value)
		t.freeItem(idx)
		t.count--
		idx = next
	}
	return lrutrack.OK
}

// RemoveAll evicts every tracked key, invoking EvictFunc for each, and
// resets the table, free list and LRU list to an empty state.
func (t *Tracker) RemoveAll() {
	for b := uint32(0); b < t.cfg.HashTableSize; b++ {
		idx := t.table.Head(b)
		for idx != arena.Null {
			next := t.arena.Next(idx)
			it := t.arena.Get(idx)
			t.cfg.EvictFunc(t.cfg.EvictUser, it.value)
			t.alloc.Free(it.key)
			idx = next
		}
	}

	t.table.Reset()
	t.arena.ResetAll()
	t.count = 0
}

// Close invokes EvictFunc for every in-use slot, in arena-index order
// rather than LRU order.
func (t *Tracker) Close() {
	for idx := uint32(0); idx < t.arena.Cap(); idx++ {
		it := t.arena.Get(idx)
		if !it.inUse {
			continue
		}
		t.cfg.EvictFunc(t.cfg.EvictUser, it.value)
		t.alloc.Free(it.key)
	}
	t.count = 0
}
