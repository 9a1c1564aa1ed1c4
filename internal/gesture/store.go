package gesture

import (
	"sort"

	"github.com/ayusman/gvf/internal/geometry"
)

// TemplateStore owns the recorded templates keyed by gesture id.
//
// Particles are spread over the templates round-robin by index, so the
// store keeps its keys sorted to make that assignment deterministic.
type TemplateStore struct {
	templates map[int]*Template
	keys      []int
	active    []int
	min       geometry.Point3D
	max       geometry.Point3D
}

// NewTemplateStore creates an empty TemplateStore.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{
		templates: make(map[int]*Template),
	}
}

// IsValidID reports whether id is free to be recorded.
func (s *TemplateStore) IsValidID(id int) bool {
	_, exists := s.templates[id]
	return !exists
}

// Add inserts t. It returns false, leaving the store untouched, when the
// id is already taken.
func (s *TemplateStore) Add(t *Template) bool {
	if t == nil || !s.IsValidID(t.ID) {
		return false
	}
	s.templates[t.ID] = t

	i := sort.SearchInts(s.keys, t.ID)
	s.keys = append(s.keys, 0)
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = t.ID
	return true
}

// Remove deletes the template with the given id.
func (s *TemplateStore) Remove(id int) bool {
	if _, ok := s.templates[id]; !ok {
		return false
	}
	delete(s.templates, id)

	i := sort.SearchInts(s.keys, id)
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	s.active = nil
	return true
}

// Get returns the template with the given id.
func (s *TemplateStore) Get(id int) (*Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

// LengthOf returns the sample count of a template, or 0 for an unknown id.
func (s *TemplateStore) LengthOf(id int) int {
	t, ok := s.templates[id]
	if !ok {
		return 0
	}
	return t.Len()
}

// Len returns the number of stored templates.
func (s *TemplateStore) Len() int {
	return len(s.templates)
}

// IDForParticle returns the gesture id assigned to the particle at index:
// keys[index mod count] over the active ids. It returns false when there is
// nothing to assign.
func (s *TemplateStore) IDForParticle(index int) (int, bool) {
	keys := s.ActiveIDs()
	if len(keys) == 0 || index < 0 {
		return 0, false
	}
	return keys[index%len(keys)], true
}

// AllIDs returns every stored id in ascending order.
func (s *TemplateStore) AllIDs() []int {
	out := make([]int, len(s.keys))
	copy(out, s.keys)
	return out
}

// Select restricts the ids handed out by IDForParticle. Unknown ids are
// ignored; an empty selection means every stored id. It returns the
// effective selection.
func (s *TemplateStore) Select(ids []int) []int {
	s.active = nil
	if len(ids) == 0 {
		return s.AllIDs()
	}

	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.templates[id]; ok && !seen[id] {
			seen[id] = true
			s.active = append(s.active, id)
		}
	}
	sort.Ints(s.active)
	return s.ActiveIDs()
}

// ActiveIDs returns the ids particles are currently spread over.
func (s *TemplateStore) ActiveIDs() []int {
	if s.active != nil {
		return s.active
	}
	return s.keys
}

// ResetEstimates zeroes the estimation accumulators of every template.
func (s *TemplateStore) ResetEstimates() {
	for _, t := range s.templates {
		t.ResetEstimate()
	}
}

// UpdateRange merges the sample range of every template into one global
// range and propagates it back, so all templates share one scale
// reference. The range shrinks again once a wide template is removed.
func (s *TemplateStore) UpdateRange() (min, max geometry.Point3D) {
	first := true
	for _, id := range s.keys {
		lo, hi := s.templates[id].SampleRange()
		if first {
			min, max = lo, hi
			first = false
			continue
		}
		min = geometry.Min(min, lo)
		max = geometry.Max(max, hi)
	}
	for _, t := range s.templates {
		t.SetRange(min, max)
	}
	s.min, s.max = min, max
	return min, max
}

// Range returns the shared observation range from the last UpdateRange.
func (s *TemplateStore) Range() (min, max geometry.Point3D) {
	return s.min, s.max
}

// Clear removes every template.
func (s *TemplateStore) Clear() {
	s.templates = make(map[int]*Template)
	s.keys = nil
	s.active = nil
	s.min = geometry.Point3D{}
	s.max = geometry.Point3D{}
}
