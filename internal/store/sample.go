package store

import (
	"database/sql"

	"github.com/ayusman/gvf/internal/geometry"
)

// insertSamples writes the ordered trajectory of a gesture inside tx.
func insertSamples(tx *sql.Tx, gestureID int, samples []geometry.Point3D) error {
	stmt, err := tx.Prepare(`INSERT INTO gesture_samples (gesture_id, sample_index, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range samples {
		if _, err := stmt.Exec(gestureID, i, p.X, p.Y, p.Z); err != nil {
			return err
		}
	}
	return nil
}

// Samples retrieves the trajectory of a gesture in recording order.
func (r *GestureRepository) Samples(gestureID int) ([]geometry.Point3D, error) {
	rows, err := r.db.Query(
		`SELECT x, y, z
		 FROM gesture_samples
		 WHERE gesture_id = ?
		 ORDER BY sample_index`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []geometry.Point3D
	for rows.Next() {
		var p geometry.Point3D
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		samples = append(samples, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}
