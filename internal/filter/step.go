package filter

import (
	"log"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/gesture"
)

// Outcome summarizes one filter tick.
type Outcome struct {
	// MostProbable is the template with the highest estimated probability.
	MostProbable    int
	HasMostProbable bool
	// Activated is set when the most probable template is both nearly
	// complete and dominant.
	Activated bool
	Resampled bool
	// EffectiveSize is 1/sum(w^2) of the normalized weights.
	EffectiveSize float64
}

// Step runs one full tick on the observed point.
func (e *Engine) Step(obs geometry.Point3D) Outcome {
	if len(e.particles) == 0 {
		log.Println("filter: step before train, ignoring observation")
		return Outcome{}
	}

	for s := 0; s < e.params.PredictionSteps; s++ {
		e.predict()
	}
	e.updateLikelihood(obs)
	e.updatePosterior()

	sumOfSquares := e.normalize()
	out := Outcome{EffectiveSize: 1 / sumOfSquares}
	if out.EffectiveSize < float64(e.params.ResamplingThreshold) {
		e.resample()
		out.Resampled = true
	}

	e.estimate()
	out.MostProbable, out.HasMostProbable = e.mostProbable()
	if out.HasMostProbable {
		t, _ := e.store.Get(out.MostProbable)
		out.Activated = t.Estimate.Alignment > e.params.ActivationAlignment &&
			t.Estimate.Probability > e.params.ActivationProbability
	}
	return out
}

// predict diffuses every particle once and chains the prior from the last
// posterior.
func (e *Engine) predict() {
	skipped := 0
	for i := range e.particles {
		p := &e.particles[i]
		length := e.store.LengthOf(p.GestureID)
		if length == 0 {
			skipped++
			continue
		}
		l := float64(length)
		v := &e.params

		p.Progression += e.rng.Normal()*v.AlignmentVariance + p.Dynamic.Speed/l
		p.Dynamic.Speed += e.rng.Normal()*v.DynamicsVariance + p.Dynamic.Acceleration/l
		p.Dynamic.Acceleration += e.rng.Normal() * v.DynamicsVariance

		p.Scale.X += e.rng.Normal() * v.ScalingsVariance.X
		p.Scale.Y += e.rng.Normal() * v.ScalingsVariance.Y
		p.Scale.Z += e.rng.Normal() * v.ScalingsVariance.Z

		switch e.rotationDim {
		case 1:
			p.Rotation.X += e.rng.Normal() * v.RotationsVariance.X
		case 3:
			p.Rotation.X += e.rng.Normal() * v.RotationsVariance.X
			p.Rotation.Y += e.rng.Normal() * v.RotationsVariance.Y
			p.Rotation.Z += e.rng.Normal() * v.RotationsVariance.Z
		}

		p.Prior = p.Posterior
	}
	if skipped > 0 {
		log.Printf("filter: predict skipped %d particles with unknown or empty templates", skipped)
	}
}

// updateLikelihood weights every particle against the observation.
func (e *Engine) updateLikelihood(obs geometry.Point3D) {
	tolerance2 := e.tolerance * e.tolerance
	skipped := 0

	for i := range e.particles {
		p := &e.particles[i]

		o := obs
		if e.params.Translate {
			o = o.Sub(p.Offset)
		}
		e.bound(i, p)

		t, ok := e.store.Get(p.GestureID)
		if !ok || t.Len() == 0 {
			skipped++
			continue
		}

		length := t.Len()
		frame := int(math.Floor(p.Progression * float64(length)))
		if frame > length-1 {
			frame = length - 1
		}
		if frame < 0 {
			frame = 0
		}

		ref := t.At(frame).Mul(p.Scale)
		switch e.rotationDim {
		case 1:
			e.rotation.Set(0, 0, p.Rotation.X)
			ref = e.rotation.Apply(ref)
		case 3:
			e.rotation.Set(p.Rotation.X, p.Rotation.Y, p.Rotation.Z)
			ref = e.rotation.Apply(ref)
		}

		distance := geometry.WeightedSquaredDistance(ref, o, e.params.DimWeights)
		if nu := e.params.Distribution; nu == 0 {
			p.Likelihood = math.Exp(-distance / tolerance2)
		} else {
			p.Likelihood = math.Pow(distance/nu+1, -nu/2-1)
		}
	}
	if skipped > 0 {
		log.Printf("filter: likelihood skipped %d particles with unknown or empty templates", skipped)
	}
}

// bound reflects a progression that left [0, 1]. With segmentation the
// particle also jumps to its round-robin template; without it, it bounces
// back from the end and lingers on the same template.
func (e *Engine) bound(i int, p *Particle) {
	switch {
	case p.Progression < 0:
		p.Progression = math.Abs(p.Progression)
		if e.params.Segmentation {
			e.reassign(i, p)
		}
	case p.Progression > 1:
		if e.params.Segmentation {
			p.Progression = math.Abs(1 - p.Progression)
			e.reassign(i, p)
		} else {
			p.Progression = math.Abs(2 - p.Progression)
		}
	}
}

func (e *Engine) reassign(i int, p *Particle) {
	if id, ok := e.store.IDForParticle(i); ok {
		p.GestureID = id
	}
}

func (e *Engine) updatePosterior() {
	for i := range e.particles {
		p := &e.particles[i]
		p.Posterior = p.Prior * p.Likelihood
	}
}

// normalize scales the posteriors to sum to 1 and returns the sum of
// their squares. A population that lost all its weight restarts uniform.
func (e *Engine) normalize() float64 {
	for i := range e.particles {
		e.weights[i] = e.particles[i].Posterior
	}

	sum := floats.Sum(e.weights)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		log.Printf("filter: degenerate weights (sum %g), resetting to uniform", sum)
		for i := range e.weights {
			e.weights[i] = 1
		}
		sum = float64(len(e.weights))
	}
	floats.Scale(1/sum, e.weights)

	for i := range e.particles {
		e.particles[i].Posterior = e.weights[i]
	}
	return floats.Dot(e.weights, e.weights)
}

// resample performs systematic resampling: one jittered offset, then N
// evenly spaced draws along the cumulative weights of the old population.
// A particle without weight is never drawn, except as the last one.
func (e *Engine) resample() {
	n := len(e.particles)
	floats.CumSum(e.cumulative, e.weights)
	copy(e.previous, e.particles)

	u0 := (e.rng.Uniform() - 0.5) / float64(n)
	i := 0
	for j := 0; j < n; j++ {
		u := u0 + float64(j)/float64(n)
		for i < n-1 && (u > e.cumulative[i] || e.weights[i] == 0) {
			i++
		}

		src := &e.previous[i]
		dst := &e.particles[j]
		dst.GestureID = src.GestureID
		dst.Progression = src.Progression
		dst.Dynamic = src.Dynamic
		dst.Scale = src.Scale
		dst.Rotation = src.Rotation
	}

	weight := 1 / float64(n)
	for j := range e.particles {
		e.particles[j].Posterior = weight
	}
}

// estimate aggregates the population into per-template estimates.
func (e *Engine) estimate() {
	e.store.ResetEstimates()

	for i := range e.particles {
		p := &e.particles[i]
		if t, ok := e.store.Get(p.GestureID); ok {
			t.Estimate.ProbabilityMass += p.Posterior
		}
	}

	for i := range e.particles {
		p := &e.particles[i]
		t, ok := e.store.Get(p.GestureID)
		if !ok || math.IsNaN(p.Posterior) {
			continue
		}
		est := &t.Estimate
		if est.ProbabilityMass > 0 {
			w := p.Posterior / est.ProbabilityMass
			est.Alignment += w * p.Progression
			est.Dynamics.Speed += w * p.Dynamic.Speed
			est.Dynamics.Acceleration += w * p.Dynamic.Acceleration
			est.Scale = est.Scale.Add(p.Scale.Scale(w))
			if e.rotationDim != 0 {
				est.Rotation = est.Rotation.Add(p.Rotation.Scale(w))
			}
		}
		est.Probability += p.Posterior
		est.LikelihoodSum += p.Likelihood
	}
}

// mostProbable returns the active template with the highest probability.
func (e *Engine) mostProbable() (int, bool) {
	best, found := 0, false
	bestProbability := math.Inf(-1)
	for _, id := range e.store.ActiveIDs() {
		t, _ := e.store.Get(id)
		if t.Estimate.Probability > bestProbability {
			best, bestProbability, found = id, t.Estimate.Probability, true
		}
	}
	return best, found
}

// Estimates returns the latest estimate of every stored template.
func (e *Engine) Estimates() map[int]gesture.Estimate {
	out := make(map[int]gesture.Estimate, e.store.Len())
	for _, id := range e.store.AllIDs() {
		t, _ := e.store.Get(id)
		out[id] = t.Estimate
	}
	return out
}
