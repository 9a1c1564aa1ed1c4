package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultActivationLimit caps List when no limit is given.
const DefaultActivationLimit = 100

// Activation is one recognized gesture in the history.
type Activation struct {
	ID          string    `json:"id"`
	GestureID   int       `json:"gesture_id"`
	Alignment   float64   `json:"alignment"`
	Probability float64   `json:"probability"`
	Speed       float64   `json:"speed"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActivationRepository records and lists activations.
type ActivationRepository struct {
	db *sql.DB
}

// Activations returns the activation repository for this store.
func (s *Store) Activations() *ActivationRepository {
	return &ActivationRepository{db: s.db}
}

// Create inserts an activation. An empty ID is filled with a new UUID and
// a zero CreatedAt with the current time.
func (r *ActivationRepository) Create(a *Activation) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO activations (id, gesture_id, alignment, probability, speed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.GestureID, a.Alignment, a.Probability, a.Speed, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an activation by its ID.
func (r *ActivationRepository) GetByID(id string) (*Activation, error) {
	a := &Activation{}
	err := r.db.QueryRow(
		`SELECT id, gesture_id, alignment, probability, speed, created_at
		 FROM activations WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.GestureID, &a.Alignment, &a.Probability, &a.Speed, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns the most recent activations, newest first.
func (r *ActivationRepository) List(limit int) ([]*Activation, error) {
	if limit <= 0 {
		limit = DefaultActivationLimit
	}
	return r.query(
		`SELECT id, gesture_id, alignment, probability, speed, created_at
		 FROM activations ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
}

// ListByGesture returns the most recent activations of one gesture.
func (r *ActivationRepository) ListByGesture(gestureID, limit int) ([]*Activation, error) {
	if limit <= 0 {
		limit = DefaultActivationLimit
	}
	return r.query(
		`SELECT id, gesture_id, alignment, probability, speed, created_at
		 FROM activations WHERE gesture_id = ? ORDER BY created_at DESC LIMIT ?`,
		gestureID, limit,
	)
}

func (r *ActivationRepository) query(query string, args ...any) ([]*Activation, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activations []*Activation
	for rows.Next() {
		a := &Activation{}
		if err := rows.Scan(&a.ID, &a.GestureID, &a.Alignment, &a.Probability, &a.Speed, &a.CreatedAt); err != nil {
			return nil, err
		}
		activations = append(activations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return activations, nil
}
