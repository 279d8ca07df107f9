package ingest

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpeterson/avimap/internal/metrics"
	"github.com/mpeterson/avimap/internal/models"
	"github.com/mpeterson/avimap/internal/store"
)

// Importer loads fetched data into the store and keeps derived caches
// consistent: importing occurrences for a species drops its cached
// forecasts, since those are recomputed from the new history on demand.
type Importer struct {
	store *store.Store
}

func NewImporter(st *store.Store) *Importer {
	return &Importer{store: st}
}

// ImportOccurrences registers the species and bulk-inserts its occurrences.
func (i *Importer) ImportOccurrences(scientificName, commonName string, occ []models.Occurrence) error {
	if commonName == "" && len(occ) > 0 {
		commonName = occ[0].CommonName
	}
	if err := i.store.UpsertSpecies(models.Species{ScientificName: scientificName, CommonName: commonName}); err != nil {
		return fmt.Errorf("upsert species: %w", err)
	}

	if err := i.store.InsertOccurrences(occ); err != nil {
		return fmt.Errorf("insert occurrences: %w", err)
	}
	metrics.OccurrencesImported.WithLabelValues("gbif").Add(float64(len(occ)))

	if err := i.store.ReplaceForecasts(scientificName, nil); err != nil {
		return fmt.Errorf("drop stale forecasts: %w", err)
	}

	log.Printf("imported %d occurrences for %s", len(occ), scientificName)
	return nil
}

// ImportClimateDir walks a directory of <YYYY-MM-DD>.bil/.hdr pairs and
// loads each grid. Files that fail to parse are logged and skipped so one
// bad raster doesn't abort a bulk import.
func (i *Importer) ImportClimateDir(dir, variable string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".bil") {
			continue
		}

		grid, err := ReadPRISMGrid(filepath.Join(dir, entry.Name()), variable)
		if err != nil {
			log.Printf("skip %s: %v", entry.Name(), err)
			continue
		}
		if err := i.store.InsertClimateGrid(*grid); err != nil {
			return imported, fmt.Errorf("insert grid %s: %w", entry.Name(), err)
		}
		imported++
	}

	log.Printf("imported %d climate grids from %s", imported, dir)
	return imported, nil
}

// FetchAndImportOccurrences pulls a species' GBIF history for a date range
// and imports it.
func (i *Importer) FetchAndImportOccurrences(client *GBIFClient, scientificName string, from, to time.Time) (int, error) {
	occ, err := client.FetchOccurrences(scientificName, from, to)
	if err != nil {
		return 0, fmt.Errorf("fetch gbif occurrences: %w", err)
	}
	if err := i.ImportOccurrences(scientificName, "", occ); err != nil {
		return 0, err
	}
	return len(occ), nil
}

// FetchAndImportClimate downloads one PRISM day and loads it.
func (i *Importer) FetchAndImportClimate(fetcher *PRISMFetcher, variable string, date time.Time) error {
	bilPath, err := fetcher.Fetch(variable, date)
	if err != nil {
		return fmt.Errorf("fetch prism %s %s: %w", variable, date.Format("2006-01-02"), err)
	}
	grid, err := ReadPRISMGrid(bilPath, variable)
	if err != nil {
		return err
	}
	return i.store.InsertClimateGrid(*grid)
}
