package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/gesture"
)

// ErrDuplicate is returned when a gesture id is already stored.
var ErrDuplicate = errors.New("already exists")

// Gesture is the stored header of a recorded template.
type Gesture struct {
	ID        int
	Name      string
	Samples   int
	Min       geometry.Point3D
	Max       geometry.Point3D
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GestureRepository provides CRUD operations for gestures and their samples.
type GestureRepository struct {
	db *sql.DB
}

// Gestures returns the gesture repository for this store.
func (s *Store) Gestures() *GestureRepository {
	return &GestureRepository{db: s.db}
}

const gestureColumns = `id, name, samples, min_x, min_y, min_z, max_x, max_y, max_z, created_at, updated_at`

func scanGesture(row interface{ Scan(...any) error }) (*Gesture, error) {
	g := &Gesture{}
	err := row.Scan(&g.ID, &g.Name, &g.Samples,
		&g.Min.X, &g.Min.Y, &g.Min.Z,
		&g.Max.X, &g.Max.Y, &g.Max.Z,
		&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Create stores a template record and its samples in one transaction.
func (r *GestureRepository) Create(rec gesture.Record) (*Gesture, error) {
	now := time.Now()
	g := &Gesture{
		ID:        rec.ID,
		Name:      rec.Name,
		Samples:   len(rec.Samples),
		Min:       rec.Min,
		Max:       rec.Max,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT COUNT(*) FROM gestures WHERE id = ?`, g.ID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, fmt.Errorf("gesture %d: %w", g.ID, ErrDuplicate)
	}

	_, err = tx.Exec(
		`INSERT INTO gestures (`+gestureColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Samples,
		g.Min.X, g.Min.Y, g.Min.Z,
		g.Max.X, g.Max.Y, g.Max.Z,
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := insertSamples(tx, g.ID, rec.Samples); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

// GetByID retrieves a gesture header by its ID.
func (r *GestureRepository) GetByID(id int) (*Gesture, error) {
	g, err := scanGesture(r.db.QueryRow(
		`SELECT `+gestureColumns+` FROM gestures WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// List retrieves every gesture header ordered by id.
func (r *GestureRepository) List() ([]*Gesture, error) {
	rows, err := r.db.Query(`SELECT ` + gestureColumns + ` FROM gestures ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gestures []*Gesture
	for rows.Next() {
		g, err := scanGesture(rows)
		if err != nil {
			return nil, err
		}
		gestures = append(gestures, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return gestures, nil
}

// Record loads a gesture with its samples as a template record.
func (r *GestureRepository) Record(id int) (gesture.Record, error) {
	g, err := r.GetByID(id)
	if err != nil {
		return gesture.Record{}, err
	}
	samples, err := r.Samples(id)
	if err != nil {
		return gesture.Record{}, err
	}
	return toRecord(g, samples), nil
}

// Records loads every stored gesture as a template record, ordered by id.
func (r *GestureRepository) Records() ([]gesture.Record, error) {
	gestures, err := r.List()
	if err != nil {
		return nil, err
	}

	records := make([]gesture.Record, 0, len(gestures))
	for _, g := range gestures {
		samples, err := r.Samples(g.ID)
		if err != nil {
			return nil, fmt.Errorf("gesture %d: %w", g.ID, err)
		}
		records = append(records, toRecord(g, samples))
	}
	return records, nil
}

func toRecord(g *Gesture, samples []geometry.Point3D) gesture.Record {
	return gesture.Record{
		ID:      g.ID,
		Name:    g.Name,
		Samples: samples,
		Min:     g.Min,
		Max:     g.Max,
	}
}

// Rename changes the display name of a gesture.
func (r *GestureRepository) Rename(id int, name string) error {
	result, err := r.db.Exec(
		`UPDATE gestures SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateRanges stores the shared observation range on every gesture.
func (r *GestureRepository) UpdateRanges(min, max geometry.Point3D) error {
	_, err := r.db.Exec(
		`UPDATE gestures SET min_x = ?, min_y = ?, min_z = ?, max_x = ?, max_y = ?, max_z = ?, updated_at = ?`,
		min.X, min.Y, min.Z, max.X, max.Y, max.Z, time.Now(),
	)
	return err
}

// Delete removes a gesture, its samples and its activations.
func (r *GestureRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM gestures WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteAll removes every gesture.
func (r *GestureRepository) DeleteAll() error {
	_, err := r.db.Exec(`DELETE FROM gestures`)
	return err
}
