package store

import (
	"os"
	"path/filepath"
	"testing"
)

func columns(t *testing.T, s *Store, table string) map[string]bool {
	t.Helper()
	rows, err := s.DB().Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table_info(%s): %v", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return cols
}

func TestNew_Schema(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		table   string
		columns []string
	}{
		{"gestures", []string{"id", "name", "samples", "min_x", "min_y", "min_z", "max_x", "max_y", "max_z"}},
		{"gesture_samples", []string{"gesture_id", "sample_index", "x", "y", "z"}},
		{"activations", []string{"id", "gesture_id", "alignment", "probability", "speed", "created_at"}},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			got := columns(t, s, tt.table)
			if len(got) == 0 {
				t.Fatalf("table %s missing", tt.table)
			}
			for _, c := range tt.columns {
				if !got[c] {
					t.Errorf("%s.%s missing", tt.table, c)
				}
			}
		})
	}

	for _, idx := range []string{"idx_gesture_samples_gesture_id", "idx_activations_gesture_id"} {
		var name string
		if err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name); err != nil {
			t.Errorf("index %s missing: %v", idx, err)
		}
	}
}

func TestNew_ConnectionSettings(t *testing.T) {
	s := newTestStore(t)

	if n := s.DB().Stats().MaxOpenConnections; n != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", n)
	}

	var fk, timeout int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if err := s.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatal(err)
	}
	if fk != 1 || timeout != 5000 {
		t.Errorf("foreign_keys = %d, busy_timeout = %d; want 1 and 5000", fk, timeout)
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "gvf.db")

	if s, err := New(path); err == nil {
		s.Close()
		t.Fatal("expected an error for a database in a missing directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("no database file should be left behind: %v", err)
	}
}

func TestNew_ReopenKeepsGesturesAndActivations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gvf.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Gestures().Create(testRecord(1, 4)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Activations().Create(&Activation{GestureID: 1, Alignment: 0.97, Probability: 0.92}); err != nil {
		t.Fatalf("Activations().Create() error = %v", err)
	}
	s.Close()

	// migrations run again on an existing database
	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
	rec, err := s.Gestures().Record(1)
	if err != nil {
		t.Fatalf("gesture lost after reopen: %v", err)
	}
	if len(rec.Samples) != 4 {
		t.Errorf("samples = %d, want 4", len(rec.Samples))
	}
	acts, err := s.Activations().ListByGesture(1, 0)
	if err != nil || len(acts) != 1 {
		t.Errorf("activations after reopen = %v, %v; want one", acts, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "gvf.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := s.Gestures().List(); err == nil {
		t.Error("repositories should fail after Close")
	}
}
