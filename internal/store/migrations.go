package store

import "fmt"

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Gestures table - one row per recorded template with its observation range
		`CREATE TABLE IF NOT EXISTS gestures (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			samples INTEGER NOT NULL DEFAULT 0,
			min_x REAL NOT NULL DEFAULT 0,
			min_y REAL NOT NULL DEFAULT 0,
			min_z REAL NOT NULL DEFAULT 0,
			max_x REAL NOT NULL DEFAULT 0,
			max_y REAL NOT NULL DEFAULT 0,
			max_z REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Gesture samples table - ordered trajectory points, relative to the first one
		`CREATE TABLE IF NOT EXISTS gesture_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gesture_id INTEGER NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL
		)`,

		// Activations table - history of recognized gestures
		`CREATE TABLE IF NOT EXISTS activations (
			id TEXT PRIMARY KEY,
			gesture_id INTEGER NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			alignment REAL NOT NULL,
			probability REAL NOT NULL,
			speed REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_gesture_samples_gesture_id ON gesture_samples(gesture_id, sample_index)`,
		`CREATE INDEX IF NOT EXISTS idx_activations_gesture_id ON activations(gesture_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activations_created_at ON activations(created_at)`,
	}

	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return nil
}
