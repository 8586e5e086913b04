// Package hash provides seeded 64-bit digests used to map keys onto sketch slots.
package hash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// Algorithm is the string type for digest algorithm labels.
type Algorithm string

const (
	// XXH3 is the default algorithm (zeebo/xxh3).
	XXH3 Algorithm = "xxh3"

	// XXH64 is the classic xxHash64 (cespare/xxhash).
	XXH64 Algorithm = "xxh64"
)

var (
	UnknownAlgorithmError = errors.New("unknown hash algorithm")
	UnsupportedKeyError   = errors.New("unsupported key type")
)

// Key is the set of types a Func can digest without reflection on the hot path.
type Key interface {
	~string | ~[]byte |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Func digests key under seed. Same (key, seed) always gives the same value.
type Func[K Key] func(key K, seed uint64) uint64

// ParseAlgorithm maps a config label onto an Algorithm. Empty means XXH3.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", XXH3:
		return XXH3, nil
	case XXH64:
		return XXH64, nil
	}
	return "", fmt.Errorf("%w: %q", UnknownAlgorithmError, s)
}

// New returns the digest function of alg specialized for K.
// The key layout is resolved once here, so calling the result does not allocate
// for string and byte slice keys.
func New[K Key](alg Algorithm) (Func[K], error) {
	d, err := digesterOf(alg)
	if err != nil {
		return nil, err
	}

	t := reflect.TypeFor[K]()
	switch t.Kind() {
	case reflect.String:
		return func(key K, seed uint64) uint64 {
			return d.str(*(*string)(unsafe.Pointer(&key)), seed)
		}, nil
	case reflect.Slice:
		return func(key K, seed uint64) uint64 {
			return d.raw(*(*[]byte)(unsafe.Pointer(&key)), seed)
		}, nil
	}

	switch t.Size() {
	case 8:
		return func(key K, seed uint64) uint64 {
			return d.word(*(*uint64)(unsafe.Pointer(&key)), seed)
		}, nil
	case 4:
		return func(key K, seed uint64) uint64 {
			return d.word(uint64(*(*uint32)(unsafe.Pointer(&key))), seed)
		}, nil
	case 2:
		return func(key K, seed uint64) uint64 {
			return d.word(uint64(*(*uint16)(unsafe.Pointer(&key))), seed)
		}, nil
	case 1:
		return func(key K, seed uint64) uint64 {
			return d.word(uint64(*(*uint8)(unsafe.Pointer(&key))), seed)
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", UnsupportedKeyError, t)
}

// MustNew is like New but panics on error.
func MustNew[K Key](alg Algorithm) Func[K] {
	fn, err := New[K](alg)
	if err != nil {
		panic(err)
	}
	return fn
}

type digester struct {
	raw  func(b []byte, seed uint64) uint64
	str  func(s string, seed uint64) uint64
	word func(v uint64, seed uint64) uint64
}

func digesterOf(alg Algorithm) (digester, error) {
	switch alg {
	case "", XXH3:
		return digester{
			raw: xxh3.HashSeed,
			str: xxh3.HashStringSeed,
			word: func(v uint64, seed uint64) uint64 {
				var b [8]byte
				binary.LittleEndian.PutUint64(b[:], v)
				return xxh3.HashSeed(b[:], seed)
			},
		}, nil
	case XXH64:
		return digester{
			raw: func(b []byte, seed uint64) uint64 {
				var d xxhash.Digest
				d.ResetWithSeed(seed)
				_, _ = d.Write(b)
				return d.Sum64()
			},
			str: func(s string, seed uint64) uint64 {
				var d xxhash.Digest
				d.ResetWithSeed(seed)
				_, _ = d.WriteString(s)
				return d.Sum64()
			},
			word: func(v uint64, seed uint64) uint64 {
				var (
					d xxhash.Digest
					b [8]byte
				)
				binary.LittleEndian.PutUint64(b[:], v)
				d.ResetWithSeed(seed)
				_, _ = d.Write(b[:])
				return d.Sum64()
			},
		}, nil
	}
	return digester{}, fmt.Errorf("%w: %q", UnknownAlgorithmError, alg)
}
