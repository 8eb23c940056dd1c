// Package buckets implements the hash table and per-bucket LRU list shared
// by the tracker and slru packages: a fixed-size array of bucket chain
// heads, plus a doubly-linked list that orders *buckets* (not items) by
// most recent access. Ordering buckets instead of items trades recency
// resolution for memory density.
package buckets

import (
	"fmt"

	"github.com/aarni57/lrutrack/internal/arena"
)

// Null is the "no bucket/no item" sentinel, shared with the arena package's
// convention.
const Null = arena.Null

// Table is the bucket array plus the per-bucket LRU list. It holds arena
// indices only; it never touches item payloads.
type Table struct {
	heads []uint32    // bucket id -> arena index of chain head, or Null
	links [][2]uint32 // bucket id -> [prev, next] bucket id in the LRU list
	mask  uint32       // size-1, valid only when size is a power of two
	size  uint32
	pow2  bool

	head, tail uint32 // LRU list endpoints (bucket ids), or Null if empty
}

// ErrInvalidSize is returned by New when size is zero, or when requirePow2
// is true and size is not a power of two.
var ErrInvalidSize = fmt.Errorf("buckets: invalid hash table size")

// New builds a bucket table of the given size. requirePow2 should be true
// for both tracker and slru: the masked reduction is cheaper and the
// per-bucket LRU list is the same code either way.
func New(size uint32, requirePow2 bool) (*Table, error) {
	if size == 0 {
		return nil, ErrInvalidSize
	}
	if requirePow2 && size&(size-1) != 0 {
		return nil, ErrInvalidSize
	}

	t := &Table{
		heads: make([]uint32, size),
		links: make([][2]uint32, size),
		size:  size,
		pow2:  size&(size-1) == 0,
		head:  Null,
		tail:  Null,
	}
	t.mask = size - 1
	for i := range t.heads {
		t.heads[i] = Null
	}
	return t, nil
}

const (
	prev = 0
	next = 1
)

// Index reduces a hash to a bucket id: AND-mask when size is a power of
// two, modulo otherwise.
func (t *Table) Index(hash uint32) uint32 {
	if t.pow2 {
		return hash & t.mask
	}
	return hash % t.size
}

// Head returns the arena index at the head of bucket b's collision chain,
// or Null if b is empty.
func (t *Table) Head(b uint32) uint32 { return t.heads[b] }

// SetHead sets the arena index at the head of bucket b's collision chain.
func (t *Table) SetHead(b, idx uint32) { t.heads[b] = idx }

// Empty reports whether bucket b's collision chain is empty.
func (t *Table) Empty(b uint32) bool { return t.heads[b] == Null }

// LRUEmpty reports whether the LRU list has no buckets in it at all (used
// for remove-lru's NOT_FOUND case).
func (t *Table) LRUEmpty() bool { return t.head == Null }

// LRUTail returns the bucket id currently at the LRU tail, or Null.
func (t *Table) LRUTail() uint32 { return t.tail }

// Attach inserts a previously-absent bucket at the LRU head. Call this when
// a bucket's chain transitions from empty to non-empty.
func (t *Table) Attach(b uint32) {
	t.links[b][prev] = Null
	t.links[b][next] = t.head
	if t.head != Null {
		t.links[t.head][prev] = b
	}
	t.head = b
	if t.tail == Null {
		t.tail = b
	}
}

// Promote moves a bucket already present in the LRU list to the head.
func (t *Table) Promote(b uint32) {
	if t.head == b {
		return
	}
	p, n := t.links[b][prev], t.links[b][next]
	if p != Null {
		t.links[p][next] = n
	}
	if n != Null {
		t.links[n][prev] = p
	}
	if t.tail == b {
		t.tail = p
	}

	t.links[b][prev] = Null
	t.links[b][next] = t.head
	t.links[t.head][prev] = b
	t.head = b
}

// Detach removes a bucket from the LRU list entirely. Call this when a
// bucket's chain transitions from non-empty to empty.
func (t *Table) Detach(b uint32) {
	p, n := t.links[b][prev], t.links[b][next]
	if p != Null {
		t.links[p][next] = n
	} else {
		t.head = n
	}
	if n != Null {
		t.links[n][prev] = p
	} else {
		t.tail = p
	}
	t.links[b][prev] = Null
	t.links[b][next] = Null
}

// Reset clears every bucket chain head and the entire LRU list, leaving the
// table as if freshly constructed (used by RemoveAll).
func (t *Table) Reset() {
	for i := range t.heads {
		t.heads[i] = Null
	}
	for i := range t.links {
		t.links[i] = [2]uint32{Null, Null}
	}
	t.head, t.tail = Null, Null
}
