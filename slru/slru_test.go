package slru

import (
	"testing"

	"github.com/aarni57/lrutrack"
	"github.com/aarni57/lrutrack/internal/trackalloc"
	"github.com/stretchr/testify/require"
)

const invalid = ^uint32(0)

func newRecorder() (*[]uint32, lrutrack.EvictFunc) {
	var evicted []uint32
	return &evicted, func(_ interface{}, v uint32) {
		evicted = append(evicted, v)
	}
}

func TestInsertFetchRoundTrip(t *testing.T) {
	_, fn := newRecorder()
	c, err := New(256, 100, fn)
	require.NoError(t, err)

	require.Equal(t, lrutrack.OK, c.Insert([]byte("k"), 1, 10))
	require.EqualValues(t, 1, c.Fetch([]byte("k"), invalid))
	require.EqualValues(t, 90, c.Remaining())
}

func TestFetchMissReturnsPerCallSentinel(t *testing.T) {
	_, fn := newRecorder()
	c, err := New(256, 100, fn)
	require.NoError(t, err)

	require.EqualValues(t, 42, c.Fetch([]byte("missing"), 42))
	require.EqualValues(t, invalid, c.Fetch([]byte("missing"), invalid))
}

func TestRemoveRestoresBudget(t *testing.T) {
	_, fn := newRecorder()
	c, err := New(256, 100, fn)
	require.NoError(t, err)

	require.Equal(t, lrutrack.OK, c.Insert([]byte("k"), 1, 30))
	require.EqualValues(t, 70, c.Remaining())
	require.Equal(t, lrutrack.OK, c.Remove([]byte("k")))
	require.EqualValues(t, 100, c.Remaining())
	require.EqualValues(t, invalid, c.Fetch([]byte("k"), invalid))
}

func TestRemoveAbsentIsNotFound(t *testing.T) {
	_, fn := newRecorder()
	c, err := New(256, 100, fn)
	require.NoError(t, err)

	require.Equal(t, lrutrack.NotFound, c.Remove([]byte("missing")))
}

func TestInsertTooLargeForBudgetIsDoesntFit(t *testing.T) {
	_, fn := newRecorder()
	c, err := New(256, 50, fn)
	require.NoError(t, err)

	require.Equal(t, lrutrack.DoesntFit, c.Insert([]byte("k"), 1, 51))
	require.Equal(t, 0, c.Len())
	require.EqualValues(t, 50, c.Remaining())
}

func TestInsertEvictsLRUUntilItFits(t *testing.T) {
	var evicted []uint32
	fn := func(_ interface{}, v uint32) { evicted = append(evicted, v) }
	c, err := New(256, 30, fn)
	require.NoError(t, err)

	// a and b fill the whole budget.
	require.Equal(t, lrutrack.OK, c.Insert([]byte("a"), 1, 15))
	require.Equal(t, lrutrack.OK, c.Insert([]byte("b"), 2, 15))
	require.EqualValues(t, 0, c.Remaining())

	// c needs 15 more: must evict the LRU-tail bucket (a, inserted first)
	// to make room, since a's bucket differs from b's.
	require.Equal(t, lrutrack.OK, c.Insert([]byte("c"), 3, 15))
	require.Contains(t, evicted, uint32(1))
	require.EqualValues(t, 0, c.Remaining())
	require.EqualValues(t, invalid, c.Fetch([]byte("a"), invalid))
	require.EqualValues(t, 3, c.Fetch([]byte("c"), invalid))
}

func TestInsertEvictingEverythingStillDoesntFitLeavesCacheEmpty(t *testing.T) {
	var evicted []uint32
	fn := func(_ interface{}, v uint32) { evicted = append(evicted, v) }
	c, err := New(256, 20, fn)
	require.NoError(t, err)

	require.Equal(t, lrutrack.OK, c.Insert([]byte("a"), 1, 10))
	require.Equal(t, lrutrack.OK, c.Insert([]byte("b"), 2, 10))
	require.EqualValues(t, 0, c.Remaining())

	// consumption 21 exceeds CacheSize itself, so even evicting both
	// existing entries (freeing exactly 20) can never fit it.
	require.Equal(t, lrutrack.DoesntFit, c.Insert([]byte("c"), 3, 21))
	require.ElementsMatch(t, []uint32{1, 2}, evicted)
	require.Equal(t, 0, c.Len())
	require.EqualValues(t, 20, c.Remaining())
}

func TestRemoveLRUEmptyIsNotFound(t *testing.T) {
	_, fn := newRecorder()
	c, err := New(256, 100, fn)
	require.NoError(t, err)

	require.Equal(t, lrutrack.NotFound, c.RemoveLRU())
}

func TestRemoveAllRestoresFullBudget(t *testing.T) {
	var evicted []uint32
	fn := func(_ interface{}, v uint32) { evicted = append(evicted, v) }
	c, err := New(256, 100, fn, WithNumInitialItems(2))
	require.NoError(t, err)

	require.Equal(t, lrutrack.OK, c.Insert([]byte("a"), 1, 10))
	require.Equal(t, lrutrack.OK, c.Insert([]byte("b"), 2, 20))
	c.RemoveAll()

	require.ElementsMatch(t, []uint32{1, 2}, evicted)
	require.Equal(t, 0, c.Len())
	require.EqualValues(t, 100, c.Remaining())
}

func TestConstructionRejectsNilEvictFuncOrZeroCacheSize(t *testing.T) {
	_, err := New(256, 100, nil)
	require.Error(t, err)

	_, fn := newRecorder()
	_, err = New(256, 0, fn)
	require.Error(t, err)
}

func TestConstructionRejectsNonPow2HashTableSize(t *testing.T) {
	_, fn := newRecorder()
	_, err := New(100, 100, fn)
	require.Error(t, err)
}

func TestCloseVisitsEveryInUseSlotAndReleasesAllocatorMemory(t *testing.T) {
	tracked := trackalloc.New()
	c, err := New(256, 100, func(interface{}, uint32) {}, WithAllocator(tracked))
	require.NoError(t, err)

	require.Equal(t, lrutrack.OK, c.Insert([]byte("a"), 1, 10))
	require.Equal(t, lrutrack.OK, c.Insert([]byte("b"), 2, 10))
	require.NotZero(t, tracked.Outstanding())

	c.Close()
	require.Zero(t, tracked.Outstanding())
}

func TestOOMOnKeyAllocationDoesNotLeakSlotOrBudget(t *testing.T) {
	_, fn := newRecorder()
	c, err := New(4, 100, fn, WithAllocator(failingAllocator{}))
	require.NoError(t, err)

	res := c.Insert([]byte("k"), 1, 10)
	require.Equal(t, lrutrack.OOM, res)
	require.Equal(t, 0, c.Len())
	require.EqualValues(t, 100, c.Remaining())
}

type failingAllocator struct{}

func (failingAllocator) Alloc(n int) ([]byte, error) { return nil, errAllocFailed }
func (failingAllocator) Free([]byte)                 {}
func (failingAllocator) Reserve(int) error           { return nil }

type allocErr struct{}

func (allocErr) Error() string { return "key alloc refused" }

var errAllocFailed = allocErr{}

func TestOOMOnGrowthExposesDetailViaLastError(t *testing.T) {
	_, fn := newRecorder()
	tracked := trackalloc.New()
	tracked.FailReserveOn(1)

	c, err := New(4, 100, fn, WithAllocator(tracked))
	require.NoError(t, err)
	require.Nil(t, c.LastError())

	res := c.Insert([]byte("k"), 1, 10)
	require.Equal(t, lrutrack.OOM, res)
	require.Error(t, c.LastError())
}

// TestInvariantConsumptionPlusRemainingEqualsCacheSize checks the budget
// invariant (consumption used + remaining == cache size) holds after a
// mixed sequence of inserts, removes, and LRU-driven evictions.
func TestInvariantConsumptionPlusRemainingEqualsCacheSize(t *testing.T) {
	_, fn := newRecorder()
	const total = 64
	c, err := New(256, total, fn)
	require.NoError(t, err)

	ops := []struct {
		key         string
		consumption uint16
	}{
		{"a", 10}, {"b", 20}, {"c", 15}, {"d", 25}, {"e", 5}, {"f", 30},
	}
	for i, op := range ops {
		_ = c.Insert([]byte(op.key), uint32(i+1), op.consumption)
		require.LessOrEqual(t, c.Remaining(), uint64(total))
	}
	_ = c.Remove([]byte("a"))
	_ = c.RemoveLRU()

	var consumed uint64
	for idx := uint32(0); idx < c.arena.Cap(); idx++ {
		it := c.arena.Get(idx)
		if it.consumption != 0 {
			consumed += uint64(it.consumption)
		}
	}
	require.Equal(t, uint64(total), consumed+c.Remaining())
}
