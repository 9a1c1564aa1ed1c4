// Package filter implements the sequential particle filter that follows a
// live 3D trajectory against the recorded gesture templates.
//
// Each particle is one hypothesis: which template is being performed, how
// far along it is (progression), how fast, and under which scale and
// rotation. Every observed point runs one tick: predict, weight by
// likelihood, normalize, resample on degeneracy, then aggregate the
// per-template estimates.
package filter

import (
	"log"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/gesture"
	"github.com/ayusman/gvf/internal/random"
)

// Particle is one weighted hypothesis about the gesture being performed.
type Particle struct {
	GestureID   int
	Progression float64
	Dynamic     gesture.Dynamics
	Scale       geometry.Point3D
	// Rotation holds the Euler angles (phi, theta, psi). With a single
	// rotation channel only X is used, as an angle about the z axis.
	Rotation geometry.Point3D
	Offset   geometry.Point3D

	Prior      float64
	Likelihood float64
	Posterior  float64
}

// Engine owns the particle population and runs the filter ticks.
// An Engine is not safe for concurrent use.
type Engine struct {
	params          Params
	tolerance       float64
	manualTolerance bool
	rotationDim     int

	rng   random.Sampler
	store *gesture.TemplateStore

	particles  []Particle
	previous   []Particle
	weights    []float64
	cumulative []float64
	rotation   *geometry.Rotation
}

// New creates an Engine over store. Train must run before the first Step.
func New(store *gesture.TemplateStore, rng random.Sampler, params Params) *Engine {
	params = params.sanitize()
	e := &Engine{
		params:    params,
		tolerance: DefaultTolerance,
		rng:       rng,
		store:     store,
		rotation:  geometry.NewRotation(),
	}
	if params.Tolerance > 0 {
		e.tolerance = params.Tolerance
		e.manualTolerance = true
	}
	return e
}

// Params returns the current configuration.
func (e *Engine) Params() Params {
	p := e.params
	p.Tolerance = e.tolerance
	return p
}

// Tolerance returns the tolerance in use, manual or derived.
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// Particles returns a copy of the particle population.
func (e *Engine) Particles() []Particle {
	out := make([]Particle, len(e.particles))
	copy(out, e.particles)
	return out
}

// Train rebuilds the particle population. It runs whenever the template
// set, the dimensionality or the particle count changes.
func (e *Engine) Train() {
	e.rotationDim = rotationChannels(e.params.Dimensions)

	n := e.params.NumberOfParticles
	if len(e.particles) != n {
		e.particles = make([]Particle, n)
		e.previous = make([]Particle, n)
		e.weights = make([]float64, n)
		e.cumulative = make([]float64, n)
	}

	e.InitPrior()
	e.InitNoiseParameters()
}

// InitPrior draws every particle from the configured spreadings and spreads
// the hypotheses evenly over the active templates.
func (e *Engine) InitPrior() {
	n := len(e.particles)
	if n == 0 {
		return
	}
	weight := 1 / float64(n)

	for i := range e.particles {
		p := &e.particles[i]
		p.Progression = e.spread(e.params.AlignmentSpreading)
		p.Dynamic = gesture.Dynamics{
			Speed:        e.spread(e.params.DynamicsSpreading.Speed),
			Acceleration: e.spread(e.params.DynamicsSpreading.Acceleration),
		}
		p.Scale = geometry.Point3D{
			X: e.spread(e.params.ScalingsSpreading),
			Y: e.spread(e.params.ScalingsSpreading),
			Z: e.spread(e.params.ScalingsSpreading),
		}
		p.Rotation = geometry.Point3D{}
		switch e.rotationDim {
		case 1:
			p.Rotation.X = e.spread(e.params.RotationsSpreading)
		case 3:
			p.Rotation = geometry.Point3D{
				X: e.spread(e.params.RotationsSpreading),
				Y: e.spread(e.params.RotationsSpreading),
				Z: e.spread(e.params.RotationsSpreading),
			}
		}
		p.Offset = geometry.Point3D{}
		p.Prior = weight
		p.Posterior = weight
		p.Likelihood = 0

		if id, ok := e.store.IDForParticle(i); ok {
			p.GestureID = id
		}
	}
}

// InitNoiseParameters derives the tolerance from the template ranges,
// unless it was set manually: a quarter of the mean observation range over
// the configured dimensions.
func (e *Engine) InitNoiseParameters() {
	if e.manualTolerance {
		return
	}

	ids := e.store.AllIDs()
	if len(ids) == 0 {
		return
	}

	dims := e.params.Dimensions
	if dims < 1 {
		dims = 1
	} else if dims > 3 {
		dims = 3
	}

	ranges := make([]float64, 0, len(ids))
	for _, id := range ids {
		t, _ := e.store.Get(id)
		lo, hi := t.Range()
		width := hi.Sub(lo)
		ranges = append(ranges, floats.Sum([]float64{width.X, width.Y, width.Z}[:dims])/float64(dims))
	}

	tolerance := stat.Mean(ranges, nil) / 4
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	e.tolerance = tolerance
}

func (e *Engine) spread(s Spreading) float64 {
	return s.Center + (e.rng.Uniform()-0.5)*s.Range
}

// SetNumberOfParticles resizes the population, never below MinParticles,
// and retrains.
func (e *Engine) SetNumberOfParticles(n int) {
	if n < MinParticles {
		n = MinParticles
	}
	e.params.NumberOfParticles = n
	e.params.ResamplingThreshold = clampThreshold(e.params.ResamplingThreshold, n)
	e.Train()
}

// SetResamplingThreshold sets the effective sample size below which the
// population is resampled. It is kept below the particle count.
func (e *Engine) SetResamplingThreshold(threshold int) {
	e.params.ResamplingThreshold = clampThreshold(threshold, e.params.NumberOfParticles)
}

// SetTolerance fixes the tolerance and disables automatic tuning.
// Non-positive values fall back to DefaultTolerance.
func (e *Engine) SetTolerance(tolerance float64) {
	if tolerance <= 0 {
		log.Printf("filter: tolerance %g is not positive, using %g", tolerance, DefaultTolerance)
		tolerance = DefaultTolerance
	}
	e.tolerance = tolerance
	e.params.Tolerance = tolerance
	e.manualTolerance = true
}

// SetAutoTolerance switches back to deriving the tolerance from the templates.
func (e *Engine) SetAutoTolerance() {
	e.manualTolerance = false
	e.params.Tolerance = 0
	e.InitNoiseParameters()
}

// SetDistribution selects the likelihood kernel (0 is gaussian).
func (e *Engine) SetDistribution(distribution float64) {
	if distribution < 0 {
		distribution = 0
	}
	e.params.Distribution = distribution
}

// SetPredictionSteps sets the number of predict sub-steps per tick (min 1).
func (e *Engine) SetPredictionSteps(steps int) {
	if steps < 1 {
		steps = 1
	}
	e.params.PredictionSteps = steps
}

// SetDimensions changes the spatial dimensionality and retrains.
func (e *Engine) SetDimensions(dimensions int) {
	e.params.Dimensions = dimensions
	e.Train()
}

// SetDimWeights sets the per-dimension weights of the distance.
func (e *Engine) SetDimWeights(w geometry.Point3D) {
	e.params.DimWeights = w
}

// SetAlignmentVariance sets the progression diffusion.
func (e *Engine) SetAlignmentVariance(v float64) {
	e.params.AlignmentVariance = v
}

// SetDynamicsVariance sets the speed/acceleration diffusion.
func (e *Engine) SetDynamicsVariance(v float64) {
	e.params.DynamicsVariance = v
}

// SetScalingsVariance sets the scale diffusion.
func (e *Engine) SetScalingsVariance(v geometry.Point3D) {
	e.params.ScalingsVariance = v
}

// SetRotationsVariance sets the rotation diffusion used by the predict step.
func (e *Engine) SetRotationsVariance(v geometry.Point3D) {
	e.params.RotationsVariance = v
}

// SetAlignmentSpreading sets the initial progression spread.
func (e *Engine) SetAlignmentSpreading(s Spreading) {
	e.params.AlignmentSpreading = s
}

// SetDynamicsSpreading sets the initial speed/acceleration spread.
func (e *Engine) SetDynamicsSpreading(s DynamicsSpreading) {
	e.params.DynamicsSpreading = s
}

// SetScalingsSpreading sets the initial scale spread.
func (e *Engine) SetScalingsSpreading(s Spreading) {
	e.params.ScalingsSpreading = s
}

// SetRotationsSpreading sets the initial rotation spread.
func (e *Engine) SetRotationsSpreading(s Spreading) {
	e.params.RotationsSpreading = s
}

// SetTranslate enables translation compensation.
func (e *Engine) SetTranslate(enabled bool) {
	e.params.Translate = enabled
}

// SetSegmentation enables automatic segmentation at template boundaries.
func (e *Engine) SetSegmentation(enabled bool) {
	e.params.Segmentation = enabled
}
