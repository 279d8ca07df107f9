package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mpeterson/avimap/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertSpecies(sp models.Species) error {
	_, err := s.db.Exec(`
		INSERT INTO species (scientific_name, common_name)
		VALUES (?, ?)
		ON CONFLICT(scientific_name) DO UPDATE SET
			common_name = excluded.common_name
	`, sp.ScientificName, sp.CommonName)
	return err
}

func (s *Store) ListSpecies() ([]models.Species, error) {
	rows, err := s.db.Query(`SELECT scientific_name, common_name FROM species ORDER BY common_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var species []models.Species
	for rows.Next() {
		var sp models.Species
		if err := rows.Scan(&sp.ScientificName, &sp.CommonName); err != nil {
			return nil, err
		}
		species = append(species, sp)
	}
	return species, rows.Err()
}

// GetSpecies looks up a species by scientific name, case-insensitively.
// Returns nil when unknown.
func (s *Store) GetSpecies(scientificName string) (*models.Species, error) {
	row := s.db.QueryRow(`
		SELECT scientific_name, common_name FROM species
		WHERE scientific_name = ? COLLATE NOCASE
	`, scientificName)

	var sp models.Species
	err := row.Scan(&sp.ScientificName, &sp.CommonName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *Store) InsertOccurrence(o models.Occurrence) error {
	_, err := s.db.Exec(`
		INSERT INTO occurrences (scientific_name, observed_on, latitude, longitude, count, temperature, precipitation)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scientific_name, observed_on, latitude, longitude) DO NOTHING
	`, o.ScientificName, dateOnly(o.ObservedOn), o.Latitude, o.Longitude, o.Count, o.Temperature, o.Precipitation)
	return err
}

// InsertOccurrences bulk-inserts within a single transaction.
func (s *Store) InsertOccurrences(occ []models.Occurrence) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO occurrences (scientific_name, observed_on, latitude, longitude, count, temperature, precipitation)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scientific_name, observed_on, latitude, longitude) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range occ {
		if _, err := stmt.Exec(o.ScientificName, dateOnly(o.ObservedOn), o.Latitude, o.Longitude, o.Count, o.Temperature, o.Precipitation); err != nil {
			return fmt.Errorf("insert occurrence %s %s: %w", o.ScientificName, o.ObservedOn.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

const occurrenceColumns = `id, scientific_name,
	COALESCE((SELECT common_name FROM species WHERE species.scientific_name = occurrences.scientific_name COLLATE NOCASE), ''),
	observed_on, latitude, longitude, count, temperature, precipitation, created_at`

func (s *Store) scanOccurrences(rows *sql.Rows) ([]models.Occurrence, error) {
	defer rows.Close()
	var occ []models.Occurrence
	for rows.Next() {
		var o models.Occurrence
		var observedOn string
		if err := rows.Scan(&o.ID, &o.ScientificName, &o.CommonName, &observedOn, &o.Latitude, &o.Longitude, &o.Count, &o.Temperature, &o.Precipitation, &o.CreatedAt); err != nil {
			return nil, err
		}
		day, err := time.Parse("2006-01-02", observedOn)
		if err != nil {
			return nil, fmt.Errorf("parse observed_on %q: %w", observedOn, err)
		}
		o.ObservedOn = day
		occ = append(occ, o)
	}
	return occ, rows.Err()
}

// GetAllOccurrences returns every occurrence for a species ordered by date,
// used for forecast trend fitting.
func (s *Store) GetAllOccurrences(scientificName string) ([]models.Occurrence, error) {
	rows, err := s.db.Query(`
		SELECT `+occurrenceColumns+`
		FROM occurrences
		WHERE scientific_name = ? COLLATE NOCASE
		ORDER BY observed_on ASC
	`, scientificName)
	if err != nil {
		return nil, err
	}
	return s.scanOccurrences(rows)
}

// GetOccurrencesByDate returns occurrences for a species on exactly the given
// calendar day, newest first. limit <= 0 means no limit.
func (s *Store) GetOccurrencesByDate(scientificName string, date time.Time, limit int) ([]models.Occurrence, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT `+occurrenceColumns+`
		FROM occurrences
		WHERE scientific_name = ? COLLATE NOCASE AND observed_on = ?
		ORDER BY observed_on DESC, id DESC
		LIMIT ?
	`, scientificName, dateOnly(date), limit)
	if err != nil {
		return nil, err
	}
	return s.scanOccurrences(rows)
}

func (s *Store) GetRecentOccurrences(scientificName string, limit int) ([]models.Occurrence, error) {
	rows, err := s.db.Query(`
		SELECT `+occurrenceColumns+`
		FROM occurrences
		WHERE scientific_name = ? COLLATE NOCASE
		ORDER BY observed_on DESC, id DESC
		LIMIT ?
	`, scientificName, limit)
	if err != nil {
		return nil, err
	}
	return s.scanOccurrences(rows)
}

// HasOccurrencesOn reports whether any occurrence exists for the species on
// the given day. Cheap existence probe used by the nearby-date resolver.
func (s *Store) HasOccurrencesOn(scientificName string, date time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM occurrences
		WHERE scientific_name = ? COLLATE NOCASE AND observed_on = ?
	`, scientificName, dateOnly(date)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetDailyCounts sums per-day occurrence counts for a species, optionally
// restricted to one year (year == 0 means all years). Ordered by date.
func (s *Store) GetDailyCounts(scientificName string, year int) ([]models.DailyCount, error) {
	query := `
		SELECT CAST(strftime('%Y', observed_on) AS INTEGER),
		       CAST(strftime('%m', observed_on) AS INTEGER),
		       CAST(strftime('%d', observed_on) AS INTEGER),
		       SUM(count)
		FROM occurrences
		WHERE scientific_name = ? COLLATE NOCASE`
	args := []any{scientificName}
	if year != 0 {
		query += ` AND strftime('%Y', observed_on) = ?`
		args = append(args, fmt.Sprintf("%04d", year))
	}
	query += `
		GROUP BY observed_on
		ORDER BY observed_on ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.DailyCount
	for rows.Next() {
		var dc models.DailyCount
		if err := rows.Scan(&dc.Year, &dc.Month, &dc.Day, &dc.Total); err != nil {
			return nil, err
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}

// dateOnly normalizes a time to its calendar day so DATE comparisons in
// sqlite match regardless of the source timestamp's clock time.
func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
