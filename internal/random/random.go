// Package random provides the seedable random source the particle filter
// draws its uniform and gaussian noise from.
package random

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler is the random capability injected into the filter engine.
type Sampler interface {
	// Uniform returns a value in [0, 1).
	Uniform() float64
	// Normal returns a standard normal value (mean 0, deviation 1).
	Normal() float64
}

// Source is a Sampler backed by gonum distributions over a PCG generator.
type Source struct {
	uniform distuv.Uniform
	normal  distuv.Normal
}

// New creates a Source seeded with seed. Two sources with the same seed
// produce the same sequence.
func New(seed uint64) *Source {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Source{
		uniform: distuv.Uniform{Min: 0, Max: 1, Src: src},
		normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// Uniform returns a value in [0, 1).
func (s *Source) Uniform() float64 {
	return s.uniform.Rand()
}

// Normal returns a standard normal value.
func (s *Source) Normal() float64 {
	return s.normal.Rand()
}
