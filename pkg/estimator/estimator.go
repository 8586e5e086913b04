// Package estimator implements a lock-free count-min sketch that estimates how often a key
// has been seen without storing the key.
//
// An Estimator is H rows of W signed counters. Every row has its own random seed, a key maps
// to one counter per row and the estimate is the minimum across rows. Collisions only ever
// inflate a counter, so in the absence of decrements and overflow the estimate is never below
// the true frequency.
//
// All operations are safe for concurrent use: each touches exactly one counter per row with
// a single atomic instruction, never blocks and never allocates. There is no cross-row
// atomicity, an estimate returned while other goroutines mutate the same key is a best-effort
// snapshot. Counters wrap on overflow; a negative estimate is how callers detect it.
package estimator

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/Borislavv/go-estimator/pkg/hash"
)

// maxCounters bounds hashes*slots so the counter table stays addressable.
const maxCounters uint64 = 1 << 44

var (
	ZeroHashesError    = errors.New("estimator: number of hashes must be at least 1")
	ZeroSlotsError     = errors.New("estimator: number of slots must be at least 1")
	TooLargeError      = errors.New("estimator: hashes*slots exceeds the addressable counter table")
	DuplicateSeedError = errors.New("estimator: row seeds must be distinct")
)

// Estimator is a fixed-size count-min sketch over keys of type K.
type Estimator[K hash.Key] struct {
	rows   []row
	digest hash.Func[K]
	alg    hash.Algorithm
}

// New creates an Estimator with the given amount of hashes (rows) and slots (counters per row).
// Every row gets its own seed from a secure random source and the default xxh3 digest.
func New[K hash.Key](hashes, slots int) (*Estimator[K], error) {
	if err := validate(hashes, slots); err != nil {
		return nil, err
	}
	seeds, err := hash.Seeds(hashes)
	if err != nil {
		return nil, fmt.Errorf("estimator: seed rows: %w", err)
	}
	return build[K](slots, hash.XXH3, seeds)
}

// NewWithSeeds creates an Estimator with one row per seed. Two estimators built from the same
// slots, algorithm and seeds map every key onto the same counters, which makes runs reproducible.
func NewWithSeeds[K hash.Key](slots int, alg hash.Algorithm, seeds []uint64) (*Estimator[K], error) {
	if err := validate(len(seeds), slots); err != nil {
		return nil, err
	}
	seen := make(map[uint64]struct{}, len(seeds))
	for _, seed := range seeds {
		if _, dup := seen[seed]; dup {
			return nil, fmt.Errorf("%w: %d", DuplicateSeedError, seed)
		}
		seen[seed] = struct{}{}
	}
	return build[K](slots, alg, seeds)
}

// MustNew is like New but panics on error.
func MustNew[K hash.Key](hashes, slots int) *Estimator[K] {
	e, err := New[K](hashes, slots)
	if err != nil {
		panic(err)
	}
	return e
}

func validate(hashes, slots int) error {
	if hashes < 1 {
		return ZeroHashesError
	}
	if slots < 1 {
		return ZeroSlotsError
	}
	if uint64(slots) > maxCounters/uint64(hashes) {
		return fmt.Errorf("%w: %d*%d", TooLargeError, hashes, slots)
	}
	return nil
}

func build[K hash.Key](slots int, alg hash.Algorithm, seeds []uint64) (*Estimator[K], error) {
	if alg == "" {
		alg = hash.XXH3
	}
	digest, err := hash.New[K](alg)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}

	rows := make([]row, len(seeds))
	for i, seed := range seeds {
		rows[i] = newRow(slots, seed)
	}

	return &Estimator[K]{
		rows:   rows,
		digest: digest,
		alg:    alg,
	}, nil
}

// Incr adds value to the key's counter in every row and returns the new estimate,
// the minimum of the post-add values.
// Overflow is allowed: when a counter wraps the estimate turns negative and
// it is up to the caller to catch that.
func (e *Estimator[K]) Incr(key K, value int64) int64 {
	estimate := int64(math.MaxInt64)
	for i := range e.rows {
		r := &e.rows[i]
		if current := r.counter(e.digest(key, r.seed)).Add(value); current < estimate {
			estimate = current
		}
	}
	return estimate
}

// Decr subtracts value from the key's counter in every row.
// Counters may go below zero.
func (e *Estimator[K]) Decr(key K, value int64) {
	for i := range e.rows {
		r := &e.rows[i]
		r.counter(e.digest(key, r.seed)).Add(-value)
	}
}

// Get returns the estimated frequency of key.
func (e *Estimator[K]) Get(key K) int64 {
	estimate := int64(math.MaxInt64)
	for i := range e.rows {
		r := &e.rows[i]
		if current := r.counter(e.digest(key, r.seed)).Load(); current < estimate {
			estimate = current
		}
	}
	return estimate
}

// Reset zeroes every counter. It is not atomic as a whole: operations running concurrently
// may observe some rows already cleared and others not.
func (e *Estimator[K]) Reset() {
	for i := range e.rows {
		e.rows[i].reset()
	}
}

// Hashes returns the number of rows.
func (e *Estimator[K]) Hashes() int {
	return len(e.rows)
}

// Slots returns the number of counters per row.
func (e *Estimator[K]) Slots() int {
	return len(e.rows[0].counters)
}

// Algorithm returns the digest algorithm used by the rows.
func (e *Estimator[K]) Algorithm() hash.Algorithm {
	return e.alg
}

// Seeds returns a copy of the per-row seeds.
func (e *Estimator[K]) Seeds() []uint64 {
	seeds := make([]uint64, len(e.rows))
	for i := range e.rows {
		seeds[i] = e.rows[i].seed
	}
	return seeds
}

// Memory returns the size of the counter table in bytes.
func (e *Estimator[K]) Memory() int64 {
	return int64(e.Hashes()) * int64(e.Slots()) * int64(unsafe.Sizeof(e.rows[0].counters[0]))
}
