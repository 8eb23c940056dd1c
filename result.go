// Package lrutrack provides two embeddable, in-process cache data
// structures, Tracker (github.com/aarni57/lrutrack/tracker) and Cache
// (github.com/aarni57/lrutrack/slru), built on a shared hash table, item
// arena and per-bucket LRU list. This package holds the types both
// subpackages share: the Result/error type, the Allocator and eviction
// callback contracts.
package lrutrack

import "fmt"

// Result is the small closed set of outcomes every operation in this
// library can return. It implements error (the syscall.Errno pattern) so
// callers can either switch on the exact code or treat it as a plain Go
// error with errors.Is.
type Result int

const (
	// OK indicates the operation completed normally.
	OK Result = iota
	// ErrorResult reports a precondition violation: at construction time
	// (see New in the tracker and slru packages), and from Insert when the
	// key is empty, the tracker value equals InvalidValue, or the slru
	// consumption is zero. Remove, Lookup, Fetch, RemoveLRU and RemoveAll
	// never return it.
	ErrorResult
	// OOM indicates the allocator refused a required allocation. The
	// cache is left in its previous valid state.
	OOM
	// NotFound indicates a lookup or remove target was absent. This is
	// informational, not an error condition.
	NotFound
	// DoesntFit indicates an slru insert could not make room for the new
	// item even after evicting every entry. The cache is empty on return.
	DoesntFit
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case ErrorResult:
		return "ERROR"
	case OOM:
		return "OOM"
	case NotFound:
		return "NOT_FOUND"
	case DoesntFit:
		return "DOESNT_FIT"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Error implements the error interface. OK.Error() still returns "OK";
// callers compare against the OK constant rather than nil-checking, the
// same way they would compare against io.EOF.
func (r Result) Error() string { return r.String() }

// Ok reports whether r is the OK result.
func (r Result) Ok() bool { return r == OK }
