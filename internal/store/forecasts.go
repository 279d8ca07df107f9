package store

import (
	"time"

	"github.com/mpeterson/avimap/internal/models"
)

// ReplaceForecasts swaps the cached forecast rows for a species in one
// transaction. Forecasts are derived data: the occurrence table stays the
// source of truth and this cache is recomputable at any time.
func (s *Store) ReplaceForecasts(scientificName string, points []models.ForecastPoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM forecasts WHERE scientific_name = ? COLLATE NOCASE`, scientificName); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO forecasts (scientific_name, year, month, count_prediction, range_north, range_south, range_east, range_west, lower, upper, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range points {
		if _, err := stmt.Exec(scientificName, p.Year, p.Month, p.CountPrediction,
			p.RangeNorth, p.RangeSouth, p.RangeEast, p.RangeWest, p.Lower, p.Upper, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetForecasts returns cached forecast points ordered by (year, month).
// An empty slice means no cache exists yet.
func (s *Store) GetForecasts(scientificName string) ([]models.ForecastPoint, error) {
	rows, err := s.db.Query(`
		SELECT year, month, count_prediction, range_north, range_south, range_east, range_west, lower, upper
		FROM forecasts
		WHERE scientific_name = ? COLLATE NOCASE
		ORDER BY year ASC, month ASC
	`, scientificName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.ForecastPoint
	for rows.Next() {
		var p models.ForecastPoint
		if err := rows.Scan(&p.Year, &p.Month, &p.CountPrediction,
			&p.RangeNorth, &p.RangeSouth, &p.RangeEast, &p.RangeWest, &p.Lower, &p.Upper); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
