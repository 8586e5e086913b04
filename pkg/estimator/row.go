package estimator

import "sync/atomic"

// row is one hash/counter-array pair of the sketch. Its width is fixed at construction.
type row struct {
	counters []atomic.Int64
	seed     uint64
}

func newRow(slots int, seed uint64) row {
	return row{
		counters: make([]atomic.Int64, slots),
		seed:     seed,
	}
}

// counter returns the cell the given digest lands on.
func (r *row) counter(digest uint64) *atomic.Int64 {
	return &r.counters[digest%uint64(len(r.counters))]
}

func (r *row) reset() {
	for i := range r.counters {
		r.counters[i].Store(0)
	}
}
