// Package seeded provides deterministic pseudo-randomness derived from strings.
//
// Ranking jitter must be reproducible: the same inputs on the same day rank the
// same way on every replica and in every language. Values are produced by
// hashing the seed with 32-bit FNV-1a and stepping a mulberry32 generator, so
// the sequence only depends on the seed bytes.
package seeded

import (
	"hash/fnv"
	"strings"
)

const (
	mulberryIncrement = 0x6D2B79F5
	twoPow32          = 4294967296.0
)

// Rand is a mulberry32 generator. The zero value is usable and seeded with 0.
// Rand is not safe for concurrent use.
type Rand struct {
	state uint32
}

// Hash32 returns the 32-bit FNV-1a hash of s.
func Hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// New returns a generator seeded from seed.
func New(seed string) *Rand {
	return &Rand{state: Hash32(seed)}
}

// Uint32 returns the next value in the sequence.
func (r *Rand) Uint32() uint32 {
	r.state += mulberryIncrement
	t := r.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

// Float64 returns the next value in [0, 1).
func (r *Rand) Float64() float64 {
	return float64(r.Uint32()) / twoPow32
}

// Unit returns the first [0,1) value for the seed formed by joining parts.
func Unit(parts ...string) float64 {
	return New(strings.Join(parts, "|")).Float64()
}

// Jitter returns a value in [-amplitude, amplitude) derived from parts.
func Jitter(amplitude float64, parts ...string) float64 {
	return (Unit(parts...)*2 - 1) * amplitude
}
