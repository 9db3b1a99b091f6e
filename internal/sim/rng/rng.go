// Package rng derives reproducible pseudo-random streams from string seeds.
//
// Identical seeds always produce identical streams. Streams are not safe for
// concurrent use and must stay owned by the subsystem that created them; each
// subsystem derives its own seed with Derive so that draws never interleave.
package rng

import (
	"hash/fnv"
	"math/rand/v2"

	"piverse.ai/internal/sim/mathx"
)

// Source is anything that yields floats in [0,1).
type Source interface {
	Float64() float64
}

// Stream is a seeded generator. The zero value is not usable; call New.
type Stream struct {
	seed string
	pcg  *rand.PCG
	r    *rand.Rand
}

// New returns a stream whose sequence depends only on seed.
func New(seed string) *Stream {
	s0 := SeedValue(seed)
	pcg := rand.NewPCG(s0, mathx.Mix64(s0))
	return &Stream{
		seed: seed,
		pcg:  pcg,
		r:    rand.New(pcg),
	}
}

// Func is the closure form of New.
func Func(seed string) func() float64 {
	s := New(seed)
	return s.Float64
}

// Float64 returns the next value in [0,1).
func (s *Stream) Float64() float64 {
	return s.r.Float64()
}

// IntN returns floor(Float64()*n), consuming exactly one draw.
func (s *Stream) IntN(n int) int {
	return Index(s, n)
}

func (s *Stream) Seed() string { return s.seed }

// MarshalBinary captures the stream position so a restored stream continues
// with the same draws.
func (s *Stream) MarshalBinary() ([]byte, error) {
	return s.pcg.MarshalBinary()
}

func (s *Stream) UnmarshalBinary(b []byte) error {
	return s.pcg.UnmarshalBinary(b)
}

// SeedValue hashes a seed string with FNV-1a 64.
func SeedValue(seed string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return h.Sum64()
}

// Derive builds the per-subsystem seed "<seed>-<suffix>".
func Derive(seed, suffix string) string {
	return seed + "-" + suffix
}

// Index maps one draw onto [0,n) by floor(r*n).
func Index(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Spread returns base + (r-0.5)*spread for one draw.
func Spread(src Source, base, spread float64) float64 {
	return base + (src.Float64()-0.5)*spread
}

// FuncSource adapts a closure to Source.
type FuncSource func() float64

func (f FuncSource) Float64() float64 { return f() }
