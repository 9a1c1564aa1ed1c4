package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/gesture"
)

// newTestStore creates a new Store in a temporary directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// testRecord builds a straight line along x with n samples.
func testRecord(id, n int) gesture.Record {
	samples := make([]geometry.Point3D, n)
	for i := range samples {
		samples[i] = geometry.Point3D{X: float64(i) / float64(n-1), Y: 0.5 * float64(i)}
	}
	return gesture.Record{
		ID:      id,
		Name:    "line",
		Samples: samples,
		Min:     geometry.Point3D{},
		Max:     samples[n-1],
	}
}

func TestGestureRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	rec := testRecord(1, 5)
	created, err := repo.Create(rec)
	if err != nil {
		t.Fatalf("failed to create gesture: %v", err)
	}

	// Verify CreatedAt and UpdatedAt are set
	if created.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}
	if created.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set after create")
	}

	retrieved, err := repo.GetByID(1)
	if err != nil {
		t.Fatalf("failed to get gesture by ID: %v", err)
	}

	if retrieved.Name != rec.Name {
		t.Errorf("Name mismatch: got %q, want %q", retrieved.Name, rec.Name)
	}
	if retrieved.Samples != 5 {
		t.Errorf("Samples mismatch: got %d, want 5", retrieved.Samples)
	}
	if retrieved.Min != rec.Min || retrieved.Max != rec.Max {
		t.Errorf("range mismatch: got %+v..%+v, want %+v..%+v", retrieved.Min, retrieved.Max, rec.Min, rec.Max)
	}
}

func TestGestureRepository_Create_Duplicate(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	if _, err := repo.Create(testRecord(1, 5)); err != nil {
		t.Fatalf("failed to create first gesture: %v", err)
	}

	// Creating a second gesture with the same id must fail and keep the first
	_, err := repo.Create(testRecord(1, 3))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got: %v", err)
	}

	samples, err := repo.Samples(1)
	if err != nil {
		t.Fatalf("failed to read samples: %v", err)
	}
	if len(samples) != 5 {
		t.Errorf("duplicate create changed the samples: got %d, want 5", len(samples))
	}
}

func TestGestureRepository_RecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	rec := testRecord(7, 6)
	if _, err := repo.Create(rec); err != nil {
		t.Fatalf("failed to create gesture: %v", err)
	}

	got, err := repo.Record(7)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}

	if got.ID != 7 || got.Name != rec.Name {
		t.Errorf("record header = %d/%q", got.ID, got.Name)
	}
	if len(got.Samples) != len(rec.Samples) {
		t.Fatalf("expected %d samples, got %d", len(rec.Samples), len(got.Samples))
	}
	for i := range rec.Samples {
		if got.Samples[i] != rec.Samples[i] {
			t.Errorf("sample %d = %+v, want %+v", i, got.Samples[i], rec.Samples[i])
		}
	}
}

func TestGestureRepository_ListAndRecords(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	for _, id := range []int{3, 1, 2} {
		if _, err := repo.Create(testRecord(id, id+2)); err != nil {
			t.Fatalf("failed to create gesture %d: %v", id, err)
		}
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list gestures: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 gestures, got %d", len(list))
	}
	for i, g := range list {
		if g.ID != i+1 {
			t.Errorf("list[%d].ID = %d, want %d", i, g.ID, i+1)
		}
	}

	records, err := repo.Records()
	if err != nil {
		t.Fatalf("failed to load records: %v", err)
	}
	for _, r := range records {
		if len(r.Samples) != r.ID+2 {
			t.Errorf("record %d has %d samples, want %d", r.ID, len(r.Samples), r.ID+2)
		}
	}
}

func TestGestureRepository_Rename(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	created, err := repo.Create(testRecord(1, 3))
	if err != nil {
		t.Fatalf("failed to create gesture: %v", err)
	}

	// Wait a bit to ensure UpdatedAt changes
	time.Sleep(10 * time.Millisecond)

	if err := repo.Rename(1, "swipe"); err != nil {
		t.Fatalf("failed to rename gesture: %v", err)
	}

	retrieved, err := repo.GetByID(1)
	if err != nil {
		t.Fatalf("failed to get gesture after rename: %v", err)
	}
	if retrieved.Name != "swipe" {
		t.Errorf("Name not updated: got %q", retrieved.Name)
	}
	if !retrieved.UpdatedAt.After(created.UpdatedAt) {
		t.Error("UpdatedAt should be updated after Rename")
	}

	if err := repo.Rename(99, "x"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown gesture, got: %v", err)
	}
}

func TestGestureRepository_UpdateRanges(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	repo.Create(testRecord(1, 3))
	repo.Create(testRecord(2, 4))

	min := geometry.Point3D{X: -1, Y: -2, Z: -3}
	max := geometry.Point3D{X: 4, Y: 5, Z: 6}
	if err := repo.UpdateRanges(min, max); err != nil {
		t.Fatalf("failed to update ranges: %v", err)
	}

	list, _ := repo.List()
	for _, g := range list {
		if g.Min != min || g.Max != max {
			t.Errorf("gesture %d range = %+v..%+v", g.ID, g.Min, g.Max)
		}
	}
}

func TestGestureRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	if _, err := repo.Create(testRecord(1, 4)); err != nil {
		t.Fatalf("failed to create gesture: %v", err)
	}

	if err := repo.Delete(1); err != nil {
		t.Fatalf("failed to delete gesture: %v", err)
	}

	// Verify it's gone along with its samples
	if _, err := repo.GetByID(1); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got: %v", err)
	}
	samples, err := repo.Samples(1)
	if err != nil {
		t.Fatalf("failed to read samples: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("samples should cascade on delete, got %d", len(samples))
	}
}

func TestGestureRepository_Delete_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.Gestures().Delete(42)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound for non-existent gesture, got: %v", err)
	}
}

func TestGestureRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Gestures().GetByID(42)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	if _, err := s.Gestures().Record(42); err != ErrNotFound {
		t.Errorf("expected ErrNotFound from Record, got: %v", err)
	}
}

func TestGestureRepository_DeleteAll(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	repo.Create(testRecord(1, 3))
	repo.Create(testRecord(2, 3))

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("failed to delete all gestures: %v", err)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list gestures: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no gestures, got %d", len(list))
	}
}
