// Package arena implements the index-addressable item pool shared by the
// tracker and slru packages: a growable slice of item records plus a
// singly-linked free list threaded through the same per-slot link field
// that, while a slot is in use, doubles as its bucket-chain pointer.
//
// Arena deliberately knows nothing about what makes a slot "free" from the
// caller's point of view (an invalid_value sentinel for the tracker,
// consumption==0 for slru). It only owns index allocation, the free list,
// and geometric growth. The caller is responsible for resetting its own
// payload fields on Release and for checking them when walking the arena.
package arena

import (
	"fmt"

	"github.com/facebookgo/stackerr"
)

// Null is the reserved "no index" sentinel: all-ones in 32 bits.
const Null uint32 = ^uint32(0)

// Allocator governs every heap allocation the arena performs, per the
// "embedded hosts substitute their own allocator" design note. Production
// code always succeeds; Reserve exists so tests can force growth to fail
// deterministically, since Go's garbage-collected allocator has no
// malloc-returns-NULL equivalent.
type Allocator interface {
	// Reserve is called before the arena grows its backing slice to n
	// total slots. Returning a non-nil error aborts the growth and the
	// arena is left exactly as it was.
	Reserve(n int) error
}

// DefaultAllocator never fails; it is the allocator used when none is
// supplied to New.
type DefaultAllocator struct{}

func (DefaultAllocator) Reserve(int) error { return nil }

// ErrOOM (wrapped with a captured stack) is returned by Alloc when growth
// is required and the allocator refuses it.
var ErrOOM = fmt.Errorf("arena: allocator refused growth")

// Arena is a generic index-addressable pool of T records. The zero value is
// not usable; construct with New.
type Arena[T any] struct {
	items     []T
	link      []uint32 // link[i]: bucket-chain next while in use, free-list next while free
	firstFree uint32
	allocator Allocator
	hashSize  uint32 // growth target when the arena starts out empty
}

// New creates an arena with room for initial items already linked into the
// free list, growing to hashSize slots on first Alloc if initial is zero.
// alloc may be nil, in which case DefaultAllocator is used.
func New[T any](initial, hashSize uint32, alloc Allocator) *Arena[T] {
	if alloc == nil {
		alloc = DefaultAllocator{}
	}
	a := &Arena[T]{
		items:     make([]T, initial),
		link:      make([]uint32, initial),
		firstFree: Null,
		allocator: alloc,
		hashSize:  hashSize,
	}
	a.linkFreeRange(0, initial)
	return a
}

// linkFreeRange threads slots [from, to) into the free list, with "from"
// becoming the new head. Correct for to-from == 0 or 1.
func (a *Arena[T]) linkFreeRange(from, to uint32) {
	if from == to {
		return
	}
	for i := from; i < to-1; i++ {
		a.link[i] = i + 1
	}
	a.link[to-1] = a.firstFree
	a.firstFree = from
}

// Cap returns the current number of slots backing the arena (in use + free).
func (a *Arena[T]) Cap() uint32 { return uint32(len(a.items)) }

// Alloc returns the index of a free slot, growing the arena first if none
// is available. The returned slot's payload is whatever the caller left in
// it on Release (the zero value of T for a slot never used, or reset by
// ResetAll); its link is Null. On OOM the arena is left in its prior valid
// state.
func (a *Arena[T]) Alloc() (uint32, error) {
	if a.firstFree == Null {
		if err := a.grow(); err != nil {
			return Null, err
		}
	}
	idx := a.firstFree
	a.firstFree = a.link[idx]
	a.link[idx] = Null
	return idx, nil
}

// grow doubles capacity (or jumps to hashSize from empty), copying existing
// records into a new backing slice and linking the appended range into the
// free list. Only called when the free list is empty.
func (a *Arena[T]) grow() error {
	oldCap := uint32(len(a.items))
	newCap := oldCap * 2
	if oldCap == 0 {
		newCap = a.hashSize
	}
	if newCap == 0 {
		newCap = 1
	}

	if err := a.allocator.Reserve(int(newCap)); err != nil {
		// Arena is left exactly as it was before this call.
		return stackerr.Wrap(ErrOOM)
	}

	items := make([]T, newCap)
	link := make([]uint32, newCap)
	copy(items, a.items)
	copy(link, a.link)

	a.items = items
	a.link = link
	a.linkFreeRange(oldCap, newCap)
	return nil
}

// Release returns idx to the free list. The caller must have already reset
// whatever payload field marks T as free.
func (a *Arena[T]) Release(idx uint32) {
	a.link[idx] = a.firstFree
	a.firstFree = idx
}

// ResetAll zeroes every slot's payload and re-links the entire backing
// slice into the free list, in index order (slot 0 becomes firstFree).
// Used by RemoveAll to put every slot back on the free list.
func (a *Arena[T]) ResetAll() {
	var zero T
	for i := range a.items {
		a.items[i] = zero
	}
	a.firstFree = Null
	a.linkFreeRange(0, uint32(len(a.items)))
}

// Get returns a pointer to the payload at idx for in-place mutation.
func (a *Arena[T]) Get(idx uint32) *T { return &a.items[idx] }

// Next returns the link field at idx: the next item in idx's bucket chain
// while idx is in use.
func (a *Arena[T]) Next(idx uint32) uint32 { return a.link[idx] }

// SetNext sets idx's bucket-chain link.
func (a *Arena[T]) SetNext(idx, next uint32) { a.link[idx] = next }
