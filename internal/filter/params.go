package filter

import "github.com/ayusman/gvf/internal/geometry"

// Limits and defaults of the engine configuration.
const (
	// MinParticles is the smallest particle population the engine runs with.
	MinParticles = 4
	// DefaultParticles is the default particle population.
	DefaultParticles = 1000
	// DefaultTolerance is used when no tolerance can be derived or a
	// non-positive one is configured.
	DefaultTolerance = 0.2
	// DefaultActivationAlignment is the alignment a template must exceed to fire.
	DefaultActivationAlignment = 0.95
	// DefaultActivationProbability is the probability a template must exceed to fire.
	DefaultActivationProbability = 0.9
)

// Spreading is the center and width of the uniform draw that initializes
// a particle channel: values fall in [Center-Range/2, Center+Range/2].
type Spreading struct {
	Center float64 `yaml:"center" json:"center"`
	Range  float64 `yaml:"range" json:"range"`
}

// DynamicsSpreading initializes speed and acceleration separately.
type DynamicsSpreading struct {
	Speed        Spreading `yaml:"speed" json:"speed"`
	Acceleration Spreading `yaml:"acceleration" json:"acceleration"`
}

// Params holds the engine configuration. It is never changed during a tick.
type Params struct {
	NumberOfParticles   int
	ResamplingThreshold int
	PredictionSteps     int

	// Tolerance scales the gaussian kernel. Zero derives it from the
	// template ranges on every Train.
	Tolerance float64
	// Distribution selects the likelihood kernel: 0 is gaussian, a
	// positive value is the degree of the heavy-tailed kernel.
	Distribution float64

	// Dimensions is the spatial dimensionality; it decides how many
	// rotation angles a particle carries (1 for 2, 3 for 3, else none).
	Dimensions   int
	DimWeights   geometry.Point3D
	Translate    bool
	Segmentation bool

	AlignmentVariance float64
	// DynamicsVariance diffuses both speed and acceleration.
	DynamicsVariance  float64
	ScalingsVariance  geometry.Point3D
	RotationsVariance geometry.Point3D

	AlignmentSpreading Spreading
	DynamicsSpreading  DynamicsSpreading
	ScalingsSpreading  Spreading
	RotationsSpreading Spreading

	ActivationAlignment   float64
	ActivationProbability float64
}

// DefaultParams returns a Params with sensible default values.
func DefaultParams() Params {
	return Params{
		NumberOfParticles:   DefaultParticles,
		ResamplingThreshold: DefaultParticles / 4,
		PredictionSteps:     1,
		Dimensions:          3,
		DimWeights:          geometry.Splat(1),

		AlignmentVariance: 0.001,
		DynamicsVariance:  0.0316,
		ScalingsVariance:  geometry.Splat(0.00316),
		RotationsVariance: geometry.Splat(0.00316),

		AlignmentSpreading: Spreading{Center: 0, Range: 0.1},
		DynamicsSpreading: DynamicsSpreading{
			Speed:        Spreading{Center: 1, Range: 0.3},
			Acceleration: Spreading{Center: 0, Range: 0},
		},
		ScalingsSpreading:  Spreading{Center: 1, Range: 0.2},
		RotationsSpreading: Spreading{Center: 0, Range: 0},

		ActivationAlignment:   DefaultActivationAlignment,
		ActivationProbability: DefaultActivationProbability,
	}
}

// sanitize clamps degenerate values to safe ones.
func (p Params) sanitize() Params {
	if p.NumberOfParticles < MinParticles {
		p.NumberOfParticles = MinParticles
	}
	p.ResamplingThreshold = clampThreshold(p.ResamplingThreshold, p.NumberOfParticles)
	if p.PredictionSteps < 1 {
		p.PredictionSteps = 1
	}
	if p.Tolerance < 0 {
		p.Tolerance = DefaultTolerance
	}
	if p.Distribution < 0 {
		p.Distribution = 0
	}
	if p.ActivationAlignment <= 0 {
		p.ActivationAlignment = DefaultActivationAlignment
	}
	if p.ActivationProbability <= 0 {
		p.ActivationProbability = DefaultActivationProbability
	}
	return p
}

// clampThreshold keeps the resampling threshold below the particle count.
func clampThreshold(threshold, particles int) int {
	if threshold < 0 {
		return 0
	}
	if threshold >= particles {
		if t := particles / 4; t > 0 {
			return t
		}
		return 1
	}
	return threshold
}

// rotationChannels returns how many rotation angles a particle carries.
func rotationChannels(dimensions int) int {
	switch dimensions {
	case 2:
		return 1
	case 3:
		return 3
	default:
		return 0
	}
}
