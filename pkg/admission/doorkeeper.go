package admission

import (
	"fmt"
	"sync/atomic"

	"github.com/Borislavv/go-estimator/pkg/hash"
)

// doorkeeper is a lock-free Bloom filter with two probes per key.
// It keeps one-hit wonders out of the frequency sketch.
type doorkeeper[K hash.Key] struct {
	words  []atomic.Uint64
	bits   uint64
	seeds  [2]uint64
	digest hash.Func[K]
}

func newDoorkeeper[K hash.Key](bits int) (*doorkeeper[K], error) {
	seeds, err := hash.Seeds(2)
	if err != nil {
		return nil, fmt.Errorf("doorkeeper: %w", err)
	}
	words := (bits + 63) / 64
	return &doorkeeper[K]{
		words:  make([]atomic.Uint64, words),
		bits:   uint64(words) * 64,
		seeds:  [2]uint64{seeds[0], seeds[1]},
		digest: hash.MustNew[K](hash.XXH3),
	}, nil
}

func (d *doorkeeper[K]) positions(key K) (p1, p2 uint64) {
	return d.digest(key, d.seeds[0]) % d.bits, d.digest(key, d.seeds[1]) % d.bits
}

// Insert marks key and reports whether it had been marked before.
func (d *doorkeeper[K]) Insert(key K) (seen bool) {
	p1, p2 := d.positions(key)
	m1, m2 := uint64(1)<<(p1%64), uint64(1)<<(p2%64)
	old1 := d.words[p1/64].Or(m1)
	old2 := d.words[p2/64].Or(m2)
	return old1&m1 != 0 && old2&m2 != 0
}

func (d *doorkeeper[K]) Contains(key K) bool {
	p1, p2 := d.positions(key)
	return d.words[p1/64].Load()&(1<<(p1%64)) != 0 &&
		d.words[p2/64].Load()&(1<<(p2%64)) != 0
}

func (d *doorkeeper[K]) Reset() {
	for i := range d.words {
		d.words[i].Store(0)
	}
}

// Memory returns the size of the bit set in bytes.
func (d *doorkeeper[K]) Memory() int64 {
	return int64(len(d.words)) * 8
}
