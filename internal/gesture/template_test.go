package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/gvf/internal/geometry"
)

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTemplate_AddOffsetsToOrigin(t *testing.T) {
	tmpl := NewTemplate(1)
	tmpl.Add(geometry.Point3D{X: 10, Y: 5, Z: -2})
	tmpl.Add(geometry.Point3D{X: 11, Y: 7, Z: -2})

	if tmpl.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", tmpl.Len())
	}

	if got := tmpl.At(0); got != (geometry.Point3D{}) {
		t.Errorf("first sample should be the origin, got %+v", got)
	}

	want := geometry.Point3D{X: 1, Y: 2, Z: 0}
	if got := tmpl.At(1); got != want {
		t.Errorf("second sample = %+v, want %+v", got, want)
	}

	last, ok := tmpl.Last()
	if !ok || last != want {
		t.Errorf("Last() = %+v, %v; want %+v, true", last, ok, want)
	}
}

func TestTemplate_Range(t *testing.T) {
	tmpl := NewTemplate(1)
	tmpl.Add(geometry.Point3D{X: 0, Y: 0, Z: 0})
	tmpl.Add(geometry.Point3D{X: 2, Y: -1, Z: 0})
	tmpl.Add(geometry.Point3D{X: -1, Y: 3, Z: 0})

	min, max := tmpl.Range()
	if min != (geometry.Point3D{X: -1, Y: -1, Z: 0}) {
		t.Errorf("min = %+v", min)
	}
	if max != (geometry.Point3D{X: 2, Y: 3, Z: 0}) {
		t.Errorf("max = %+v", max)
	}
}

func TestTemplate_Normalized(t *testing.T) {
	tmpl := NewTemplate(1)
	tmpl.Add(geometry.Point3D{X: 0, Y: 0, Z: 0})
	tmpl.Add(geometry.Point3D{X: 2, Y: 0, Z: 0})
	tmpl.Add(geometry.Point3D{X: 4, Y: 0, Z: 0})

	normalized := tmpl.Normalized()
	if len(normalized) != 3 {
		t.Fatalf("expected 3 normalized samples, got %d", len(normalized))
	}

	// x range is 4, y and z are flat and must not divide by zero
	wantX := []float64{0, 0.5, 1}
	for i, p := range normalized {
		if !floatEqual(p.X, wantX[i]) {
			t.Errorf("normalized[%d].X = %f, want %f", i, p.X, wantX[i])
		}
		if math.IsNaN(p.Y) || math.IsNaN(p.Z) || p.Y != 0 || p.Z != 0 {
			t.Errorf("normalized[%d] flat components = (%f, %f), want 0", i, p.Y, p.Z)
		}
	}
}

func TestTemplate_SetRangeRenormalizes(t *testing.T) {
	tmpl := NewTemplate(1)
	tmpl.Add(geometry.Point3D{X: 0})
	tmpl.Add(geometry.Point3D{X: 1})

	tmpl.SetRange(geometry.Point3D{X: -1}, geometry.Point3D{X: 3})

	got := tmpl.Normalized()[1].X
	if !floatEqual(got, 0.25) {
		t.Errorf("normalized x after SetRange = %f, want 0.25", got)
	}
}

func TestTemplate_Clear(t *testing.T) {
	tmpl := NewTemplate(3)
	tmpl.Add(geometry.Point3D{X: 5})
	tmpl.Add(geometry.Point3D{X: 6})
	tmpl.Clear()

	if tmpl.Len() != 0 {
		t.Fatalf("expected empty template after Clear, got %d", tmpl.Len())
	}
	if _, ok := tmpl.Last(); ok {
		t.Error("Last() should report no sample after Clear")
	}

	// a new first point becomes the new origin
	tmpl.Add(geometry.Point3D{X: 9})
	if tmpl.At(0) != (geometry.Point3D{}) {
		t.Errorf("expected new origin after Clear, got %+v", tmpl.At(0))
	}
}

func TestTemplate_RecordRoundTrip(t *testing.T) {
	tmpl := NewTemplate(4)
	tmpl.Name = "circle"
	tmpl.Add(geometry.Point3D{X: 1, Y: 1})
	tmpl.Add(geometry.Point3D{X: 2, Y: 3})

	rec := tmpl.Record()
	restored := FromRecord(rec)

	if restored.ID != 4 || restored.Name != "circle" {
		t.Errorf("restored id/name = %d/%q", restored.ID, restored.Name)
	}
	if restored.Len() != tmpl.Len() {
		t.Fatalf("restored len = %d, want %d", restored.Len(), tmpl.Len())
	}
	for i := 0; i < tmpl.Len(); i++ {
		if restored.At(i) != tmpl.At(i) {
			t.Errorf("sample %d = %+v, want %+v", i, restored.At(i), tmpl.At(i))
		}
	}

	// mutating the record must not leak into the template
	rec.Samples[1].X = 100
	if tmpl.At(1).X == 100 {
		t.Error("Record() should return a copy of the samples")
	}
}
