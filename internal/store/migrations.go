package store

import (
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS species (
    scientific_name TEXT PRIMARY KEY,
    common_name TEXT
);

CREATE TABLE IF NOT EXISTS occurrences (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    scientific_name TEXT NOT NULL,
    observed_on DATE NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    count INTEGER NOT NULL DEFAULT 1,
    temperature REAL,
    precipitation REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(scientific_name, observed_on, latitude, longitude)
);

CREATE INDEX IF NOT EXISTS idx_occurrences_species_date
    ON occurrences(scientific_name, observed_on);

CREATE TABLE IF NOT EXISTS climate_grids (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date DATE NOT NULL,
    variable TEXT NOT NULL,
    rows INTEGER NOT NULL,
    cols INTEGER NOT NULL,
    origin_lat REAL NOT NULL,
    origin_lon REAL NOT NULL,
    step_lat REAL NOT NULL,
    step_lon REAL NOT NULL,
    nodata REAL NOT NULL,
    cells BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(date, variable)
);
`,
	},
	{
		Version:     2,
		Description: "Forecast cache",
		SQL: `
CREATE TABLE IF NOT EXISTS forecasts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    scientific_name TEXT NOT NULL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    count_prediction REAL NOT NULL,
    range_north REAL NOT NULL,
    range_south REAL NOT NULL,
    range_east REAL NOT NULL,
    range_west REAL NOT NULL,
    lower REAL NOT NULL,
    upper REAL NOT NULL,
    generated_at DATETIME NOT NULL,
    UNIQUE(scientific_name, year, month)
);
`,
	},
}

func (s *Store) Migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.Version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Description, time.Now().UTC()); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		log.Printf("applied migration %d: %s", m.Version, m.Description)
	}

	return nil
}

// verify the migrations table is reachable; used by the health endpoint.
func (s *Store) Ping() error {
	var n int
	return s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n)
}
