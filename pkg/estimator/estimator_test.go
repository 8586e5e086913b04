package estimator

import (
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"

	"github.com/Borislavv/go-estimator/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedSeeds = []uint64{
	0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9, 0x94d049bb133111eb, 0xff51afd7ed558ccd,
}

type route string

func TestIncr(t *testing.T) {
	est := MustNew[string](8, 8)
	assert.EqualValues(t, 1, est.Incr("a", 1))
	assert.EqualValues(t, 1, est.Incr("b", 1))
	assert.EqualValues(t, 3, est.Incr("a", 2))
	assert.EqualValues(t, 3, est.Incr("b", 2))
}

func TestDecr(t *testing.T) {
	est := MustNew[string](8, 8)
	est.Incr("a", 3)
	est.Incr("b", 3)
	est.Decr("a", 1)
	est.Decr("b", 1)
	assert.EqualValues(t, 2, est.Get("a"))
	assert.EqualValues(t, 2, est.Get("b"))
}

func TestGet(t *testing.T) {
	est := MustNew[string](8, 8)
	est.Incr("a", 1)
	est.Incr("a", 2)
	est.Incr("b", 1)
	est.Incr("b", 2)
	assert.EqualValues(t, 3, est.Get("a"))
	assert.EqualValues(t, 3, est.Get("b"))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		hashes int
		slots  int
		err    error
	}{
		{name: "zero hashes", hashes: 0, slots: 8, err: ZeroHashesError},
		{name: "negative hashes", hashes: -1, slots: 8, err: ZeroHashesError},
		{name: "zero slots", hashes: 4, slots: 0, err: ZeroSlotsError},
		{name: "negative slots", hashes: 4, slots: -8, err: ZeroSlotsError},
		{name: "too large", hashes: 1 << 20, slots: 1 << 30, err: TooLargeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := New[string](tt.hashes, tt.slots)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, est)
		})
	}
}

func TestNewShape(t *testing.T) {
	est, err := New[uint64](4, 1024)
	require.NoError(t, err)

	assert.Equal(t, 4, est.Hashes())
	assert.Equal(t, 1024, est.Slots())
	assert.Equal(t, hash.XXH3, est.Algorithm())
	assert.EqualValues(t, 4*1024*8, est.Memory())
	assert.Len(t, est.Seeds(), 4)
}

func TestSingleSlot(t *testing.T) {
	est := MustNew[string](3, 1)
	est.Incr("a", 2)
	est.Incr("b", 5)

	// one slot per row: every key shares the same counters
	assert.EqualValues(t, 7, est.Get("a"))
	assert.EqualValues(t, 7, est.Get("zzz"))
}

func TestNewWithSeeds(t *testing.T) {
	t.Run("duplicate seed", func(t *testing.T) {
		_, err := NewWithSeeds[string](16, hash.XXH3, []uint64{1, 2, 1})
		assert.ErrorIs(t, err, DuplicateSeedError)
	})

	t.Run("no seeds", func(t *testing.T) {
		_, err := NewWithSeeds[string](16, hash.XXH3, nil)
		assert.ErrorIs(t, err, ZeroHashesError)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := NewWithSeeds[string](16, "crc32", fixedSeeds)
		assert.ErrorIs(t, err, hash.UnknownAlgorithmError)
	})

	t.Run("reproducible", func(t *testing.T) {
		for _, alg := range []hash.Algorithm{hash.XXH3, hash.XXH64} {
			first, err := NewWithSeeds[string](32, alg, fixedSeeds)
			require.NoError(t, err)
			second, err := NewWithSeeds[string](32, alg, first.Seeds())
			require.NoError(t, err)

			for i := 0; i < 200; i++ {
				key := "key-" + strconv.Itoa(i%37)
				assert.Equal(t, first.Incr(key, int64(i)), second.Incr(key, int64(i)))
			}
		}
	})
}

func TestSeedsReturnsCopy(t *testing.T) {
	est, err := NewWithSeeds[string](8, hash.XXH3, fixedSeeds)
	require.NoError(t, err)

	seeds := est.Seeds()
	seeds[0] = 0
	assert.Equal(t, fixedSeeds, est.Seeds())
}

func TestMonotonicUnderIncrements(t *testing.T) {
	est := MustNew[string](4, 16)
	rnd := rand.New(rand.NewPCG(1, 2))

	last := map[string]int64{}
	for i := 0; i < 10_000; i++ {
		key := "k" + strconv.Itoa(rnd.IntN(100))
		got := est.Incr(key, rnd.Int64N(10)+1)
		require.GreaterOrEqual(t, got, last[key], "key %s went backwards", key)
		last[key] = got
	}
}

func TestNeverUnderestimates(t *testing.T) {
	est := MustNew[uint64](4, 64)
	rnd := rand.New(rand.NewPCG(3, 4))
	zipf := rand.NewZipf(rnd, 1.1, 1, 999)

	exact := make(map[uint64]int64)
	for i := 0; i < 50_000; i++ {
		key := zipf.Uint64()
		exact[key]++
		est.Incr(key, 1)
	}

	for key, count := range exact {
		assert.GreaterOrEqual(t, est.Get(key), count, "key %d", key)
	}
}

func TestQueryIsPure(t *testing.T) {
	est := MustNew[string](4, 8)
	for i := 0; i < 100; i++ {
		est.Incr("k"+strconv.Itoa(i), int64(i))
	}

	first := est.Get("k42")
	for i := 0; i < 100; i++ {
		require.Equal(t, first, est.Get("k42"))
	}
}

func TestReset(t *testing.T) {
	est := MustNew[string](4, 32)
	for i := 0; i < 1000; i++ {
		est.Incr("k"+strconv.Itoa(i), 3)
	}
	est.Decr("negative", 100)

	est.Reset()

	for i := 0; i < 1000; i++ {
		require.Zero(t, est.Get("k"+strconv.Itoa(i)))
	}
	assert.Zero(t, est.Get("negative"))
	assert.Zero(t, est.Get("never-seen"))

	for i := range est.rows {
		for j := range est.rows[i].counters {
			require.Zero(t, est.rows[i].counters[j].Load())
		}
	}
}

func TestDecrBelowZero(t *testing.T) {
	est := MustNew[string](4, 1024)
	est.Decr("a", 5)
	assert.EqualValues(t, -5, est.Get("a"))
	assert.EqualValues(t, -4, est.Incr("a", 1))
}

func TestOverflowWraps(t *testing.T) {
	est := MustNew[string](4, 1024)
	assert.EqualValues(t, math.MaxInt64, est.Incr("hot", math.MaxInt64))
	assert.EqualValues(t, math.MinInt64, est.Incr("hot", 1))
	assert.Negative(t, est.Get("hot"))
}

func TestNamedKeys(t *testing.T) {
	est, err := NewWithSeeds[route](64, hash.XXH3, fixedSeeds)
	require.NoError(t, err)
	plain, err := NewWithSeeds[string](64, hash.XXH3, fixedSeeds)
	require.NoError(t, err)

	est.Incr("/api/v1/user", 5)
	plain.Incr("/api/v1/user", 5)

	assert.EqualValues(t, 5, est.Get("/api/v1/user"))
	for i := range est.rows {
		for j := range est.rows[i].counters {
			require.Equal(t, plain.rows[i].counters[j].Load(), est.rows[i].counters[j].Load())
		}
	}
}

// TestNoLostUpdates compares every counter of a concurrently filled sketch
// against a serial run with identical seeds.
func TestNoLostUpdates(t *testing.T) {
	const (
		workers = 16
		perKey  = 500
		keys    = 50
	)

	concurrent, err := NewWithSeeds[string](16, hash.XXH3, fixedSeeds)
	require.NoError(t, err)
	serial, err := NewWithSeeds[string](16, hash.XXH3, fixedSeeds)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perKey; i++ {
				for k := 0; k < keys; k++ {
					concurrent.Incr("key-"+strconv.Itoa(k), 1)
				}
			}
		}()
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		for i := 0; i < perKey; i++ {
			for k := 0; k < keys; k++ {
				serial.Incr("key-"+strconv.Itoa(k), 1)
			}
		}
	}

	var total int64
	for i := range serial.rows {
		var rowSum int64
		for j := range serial.rows[i].counters {
			want := serial.rows[i].counters[j].Load()
			require.Equal(t, want, concurrent.rows[i].counters[j].Load(), "row %d slot %d", i, j)
			rowSum += want
		}
		require.EqualValues(t, workers*perKey*keys, rowSum, "row %d", i)
		total += rowSum
	}
	assert.EqualValues(t, len(fixedSeeds)*workers*perKey*keys, total)

	for k := 0; k < keys; k++ {
		assert.GreaterOrEqual(t, concurrent.Get("key-"+strconv.Itoa(k)), int64(workers*perKey))
	}
}

func TestConcurrentMixedOperations(t *testing.T) {
	est := MustNew[uint64](4, 256)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := uint64(0); i < 10_000; i++ {
				switch i % 4 {
				case 0, 1:
					est.Incr(i%97, 2)
				case 2:
					est.Decr(i%97, 1)
				default:
					_ = est.Get(i % 97)
				}
				if w == 0 && i%2500 == 0 {
					est.Reset()
				}
			}
		}(w)
	}
	wg.Wait()

	est.Reset()
	assert.Zero(t, est.Get(1))
}

func TestHotPathDoesNotAllocate(t *testing.T) {
	est := MustNew[string](4, 1024)
	key := "/api/v2/pagedata"

	allocs := testing.AllocsPerRun(1000, func() {
		est.Incr(key, 1)
		_ = est.Get(key)
		est.Decr(key, 1)
	})
	assert.Zero(t, allocs)
}
