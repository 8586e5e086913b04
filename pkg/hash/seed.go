package hash

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Seeds returns n pairwise-distinct seeds read from the system's secure random source.
func Seeds(n int) ([]uint64, error) {
	var (
		buf   [8]byte
		seeds = make([]uint64, 0, n)
		seen  = make(map[uint64]struct{}, n)
	)
	for len(seeds) < n {
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, fmt.Errorf("read random seed: %w", err)
		}
		seed := binary.LittleEndian.Uint64(buf[:])
		if _, dup := seen[seed]; dup {
			continue
		}
		seen[seed] = struct{}{}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}
