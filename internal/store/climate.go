package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mpeterson/avimap/internal/models"
)

// InsertClimateGrid persists a gridded snapshot, replacing any existing grid
// for the same (date, variable).
func (s *Store) InsertClimateGrid(g models.ClimateGrid) error {
	if len(g.Cells) != g.Rows*g.Cols {
		return fmt.Errorf("grid %s/%s: %d cells, want %d", dateOnly(g.Date), g.Variable, len(g.Cells), g.Rows*g.Cols)
	}
	_, err := s.db.Exec(`
		INSERT INTO climate_grids (date, variable, rows, cols, origin_lat, origin_lon, step_lat, step_lon, nodata, cells)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, variable) DO UPDATE SET
			rows = excluded.rows,
			cols = excluded.cols,
			origin_lat = excluded.origin_lat,
			origin_lon = excluded.origin_lon,
			step_lat = excluded.step_lat,
			step_lon = excluded.step_lon,
			nodata = excluded.nodata,
			cells = excluded.cells
	`, dateOnly(g.Date), g.Variable, g.Rows, g.Cols, g.OriginLat, g.OriginLon, g.StepLat, g.StepLon, g.NoData, encodeCells(g.Cells))
	return err
}

// GetClimateGrid returns the snapshot for (date, variable), or nil when none
// exists for that day.
func (s *Store) GetClimateGrid(date time.Time, variable string) (*models.ClimateGrid, error) {
	row := s.db.QueryRow(`
		SELECT date, variable, rows, cols, origin_lat, origin_lon, step_lat, step_lon, nodata, cells
		FROM climate_grids
		WHERE date = ? AND variable = ?
	`, dateOnly(date), variable)

	var g models.ClimateGrid
	var day string
	var blob []byte
	err := row.Scan(&day, &g.Variable, &g.Rows, &g.Cols, &g.OriginLat, &g.OriginLon, &g.StepLat, &g.StepLon, &g.NoData, &blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	g.Date, err = time.Parse("2006-01-02", day)
	if err != nil {
		return nil, fmt.Errorf("parse grid date %q: %w", day, err)
	}
	g.Cells = decodeCells(blob)
	if len(g.Cells) != g.Rows*g.Cols {
		return nil, fmt.Errorf("grid %s/%s: %d cells, want %d", day, variable, len(g.Cells), g.Rows*g.Cols)
	}
	return &g, nil
}

// HasClimateGrid reports whether a snapshot exists for (date, variable).
func (s *Store) HasClimateGrid(date time.Time, variable string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM climate_grids WHERE date = ? AND variable = ?`,
		dateOnly(date), variable).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cells are stored as little-endian float64, row-major.
func encodeCells(cells []float64) []byte {
	buf := make([]byte, 8*len(cells))
	for i, v := range cells {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeCells(buf []byte) []float64 {
	cells := make([]float64, len(buf)/8)
	for i := range cells {
		cells[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return cells
}
