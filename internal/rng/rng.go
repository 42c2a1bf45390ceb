// Package rng provides the injectable randomness source used by the
// link layer. Transmission outcomes, signal jitter and pass prediction
// all draw from a Source so tests can script specific outcomes.
package rng

import "math/rand/v2"

// Source is the subset of math/rand/v2 the link layer needs.
type Source interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// IntN returns a value in [0,n).
	IntN(n int) int
}

// New returns a deterministic PCG-backed source for the given seed.
func New(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// System returns a source backed by the process-wide generator.
func System() Source {
	return systemSource{}
}

type systemSource struct{}

func (systemSource) Float64() float64 { return rand.Float64() }
func (systemSource) IntN(n int) int   { return rand.IntN(n) }
