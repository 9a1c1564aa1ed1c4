// Package gesture provides recorded gesture templates and the store the
// particle filter draws its hypotheses from.
package gesture

import (
	"github.com/ayusman/gvf/internal/geometry"
)

// Dynamics holds the speed and acceleration of a gesture execution.
type Dynamics struct {
	Speed        float64 `json:"speed"`
	Acceleration float64 `json:"acceleration"`
}

// Estimate holds the per-tick estimation accumulators of a template.
// It is reset at the start of every filter tick.
type Estimate struct {
	ProbabilityMass float64          `json:"probability_mass"`
	Alignment       float64          `json:"alignment"`
	Dynamics        Dynamics         `json:"dynamics"`
	Scale           geometry.Point3D `json:"scale"`
	Rotation        geometry.Point3D `json:"rotation"`
	Probability     float64          `json:"probability"`
	LikelihoodSum   float64          `json:"likelihood_sum"`
}

// Record is the serializable form of a template: what persistence layers
// store and load back.
type Record struct {
	ID      int                `json:"id"`
	Name    string             `json:"name,omitempty"`
	Samples []geometry.Point3D `json:"samples"`
	Min     geometry.Point3D   `json:"min"`
	Max     geometry.Point3D   `json:"max"`
}

// Template is one recorded gesture: its raw trajectory, relative to the
// first recorded point, and the derived normalized trajectory.
type Template struct {
	ID   int
	Name string

	// Estimate is written by the filter on every tick.
	Estimate Estimate

	origin     geometry.Point3D
	raw        []geometry.Point3D
	normalized []geometry.Point3D

	// own range of the samples
	lo, hi geometry.Point3D
	// range used for normalization, shared across a store
	min, max geometry.Point3D
}

// NewTemplate creates an empty template bound to id.
func NewTemplate(id int) *Template {
	return &Template{ID: id}
}

// FromRecord rebuilds a template from its serializable form. The samples
// are taken as already relative to the origin. The range is derived from
// the samples; r.Min and r.Max only describe the store the record came
// from.
func FromRecord(r Record) *Template {
	t := &Template{
		ID:   r.ID,
		Name: r.Name,
		raw:  make([]geometry.Point3D, len(r.Samples)),
	}
	copy(t.raw, r.Samples)
	for i, p := range t.raw {
		if i == 0 {
			t.lo, t.hi = p, p
			continue
		}
		t.lo = geometry.Min(t.lo, p)
		t.hi = geometry.Max(t.hi, p)
	}
	t.min, t.max = t.lo, t.hi
	t.normalize()
	return t
}

// Record returns a copy of the template in serializable form. Min and Max
// hold the normalization range.
func (t *Template) Record() Record {
	return Record{
		ID:      t.ID,
		Name:    t.Name,
		Samples: t.Samples(),
		Min:     t.min,
		Max:     t.max,
	}
}

// Add appends an observed point. The first point becomes the origin, so
// the stored trajectory always starts at (0, 0, 0).
func (t *Template) Add(p geometry.Point3D) {
	if len(t.raw) == 0 {
		t.origin = p
		t.lo, t.hi = geometry.Point3D{}, geometry.Point3D{}
		t.min, t.max = geometry.Point3D{}, geometry.Point3D{}
	}
	q := p.Sub(t.origin)
	t.raw = append(t.raw, q)
	t.lo = geometry.Min(t.lo, q)
	t.hi = geometry.Max(t.hi, q)

	lo := geometry.Min(t.min, q)
	hi := geometry.Max(t.max, q)
	if lo != t.min || hi != t.max {
		t.min, t.max = lo, hi
		t.normalize()
		return
	}
	t.normalized = append(t.normalized, t.normalizePoint(q))
}

// Clear drops every sample and the origin.
func (t *Template) Clear() {
	t.raw = t.raw[:0]
	t.normalized = t.normalized[:0]
	t.origin = geometry.Point3D{}
	t.lo, t.hi = geometry.Point3D{}, geometry.Point3D{}
	t.min, t.max = geometry.Point3D{}, geometry.Point3D{}
}

// Len returns the number of recorded samples.
func (t *Template) Len() int {
	return len(t.raw)
}

// At returns the raw sample at index i.
func (t *Template) At(i int) geometry.Point3D {
	return t.raw[i]
}

// Last returns the newest sample.
func (t *Template) Last() (geometry.Point3D, bool) {
	if len(t.raw) == 0 {
		return geometry.Point3D{}, false
	}
	return t.raw[len(t.raw)-1], true
}

// Samples returns a copy of the raw trajectory.
func (t *Template) Samples() []geometry.Point3D {
	out := make([]geometry.Point3D, len(t.raw))
	copy(out, t.raw)
	return out
}

// Normalized returns a copy of the trajectory divided component-wise by
// the observation range.
func (t *Template) Normalized() []geometry.Point3D {
	out := make([]geometry.Point3D, len(t.normalized))
	copy(out, t.normalized)
	return out
}

// Range returns the observation range the samples are normalized by.
func (t *Template) Range() (min, max geometry.Point3D) {
	return t.min, t.max
}

// SampleRange returns the component-wise min and max of the samples
// themselves, independent of any range set with SetRange.
func (t *Template) SampleRange() (min, max geometry.Point3D) {
	return t.lo, t.hi
}

// SetRange replaces the normalization range and renormalizes. The sample
// range is left untouched.
func (t *Template) SetRange(min, max geometry.Point3D) {
	t.min, t.max = min, max
	t.normalize()
}

// ResetEstimate zeroes the estimation accumulators.
func (t *Template) ResetEstimate() {
	t.Estimate = Estimate{}
}

func (t *Template) normalize() {
	t.normalized = t.normalized[:0]
	for _, p := range t.raw {
		t.normalized = append(t.normalized, t.normalizePoint(p))
	}
}

// normalizePoint divides by the range; a flat component divides by 1.
func (t *Template) normalizePoint(p geometry.Point3D) geometry.Point3D {
	width := t.max.Sub(t.min)
	return geometry.Point3D{
		X: p.X / nonZero(width.X),
		Y: p.Y / nonZero(width.Y),
		Z: p.Z / nonZero(width.Z),
	}
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
