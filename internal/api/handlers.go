package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mpeterson/avimap/internal/heatmap"
	"github.com/mpeterson/avimap/internal/models"
	"github.com/mpeterson/avimap/internal/stats"
)

const recentLimit = 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleSpeciesList(w http.ResponseWriter, r *http.Request) {
	species, err := s.store.ListSpecies()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	names := make([]string, 0, len(species))
	scientific := make([]string, 0, len(species))
	for _, sp := range species {
		names = append(names, sp.CommonName)
		scientific = append(scientific, sp.ScientificName)
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"species":          names,
		"scientific_names": scientific,
	})
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.lookupSpecies(w, r)
	if !ok {
		return
	}

	occ, err := s.store.GetAllOccurrences(sp.ScientificName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	type point struct {
		Date      string  `json:"date"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Count     int     `json:"count"`
	}
	points := make([]point, 0, len(occ))
	for _, o := range occ {
		points = append(points, point{
			Date:      o.ObservedOn.Format("2006-01-02"),
			Latitude:  o.Latitude,
			Longitude: o.Longitude,
			Count:     o.Count,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"species":         sp.CommonName,
		"scientific_name": sp.ScientificName,
		"occurrences":     points,
	})
}

func (s *Server) handleRecentOccurrences(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.lookupSpecies(w, r)
	if !ok {
		return
	}

	occ, err := s.store.GetRecentOccurrences(sp.ScientificName, recentLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flatten(occ))
}

func (s *Server) handleOccurrencesByDate(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.lookupSpecies(w, r)
	if !ok {
		return
	}

	date, ok := parseDateParam(w, r.URL.Query().Get("target_date"))
	if !ok {
		return
	}

	limit := recentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	occ, err := s.store.GetOccurrencesByDate(sp.ScientificName, date, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flatten(occ))
}

// handleForecasts serves cached forecast points, computing and persisting
// them from occurrence history on first request. The forecast table is a
// cache: re-import invalidates it by replacement.
func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.lookupSpecies(w, r)
	if !ok {
		return
	}

	points, err := s.store.GetForecasts(sp.ScientificName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	if len(points) == 0 {
		occ, err := s.store.GetAllOccurrences(sp.ScientificName)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		points = stats.Forecast(occ, stats.DefaultHorizonMonths)
		if len(points) == 0 {
			writeError(w, http.StatusNotFound, "no_forecasts", "no forecasts available for "+sp.ScientificName)
			return
		}
		if err := s.store.ReplaceForecasts(sp.ScientificName, points); err != nil {
			log.Printf("cache forecasts for %s: %v", sp.ScientificName, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"species":         sp.CommonName,
		"scientific_name": sp.ScientificName,
		"forecasts":       points,
	})
}

func (s *Server) handleSeasonal(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.lookupSpecies(w, r)
	if !ok {
		return
	}

	daily, err := s.store.GetDailyCounts(sp.ScientificName, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	years := make(map[int]bool)
	for _, dc := range daily {
		years[dc.Year] = true
	}

	seasonal := []models.SeasonalSummary{}
	for year := minKey(years); year <= maxKey(years) && len(years) > 0; year++ {
		if !years[year] {
			continue
		}
		seasonal = append(seasonal, stats.Summarize(year, daily)...)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"species":         sp.CommonName,
		"scientific_name": sp.ScientificName,
		"seasonal_data":   seasonal,
	})
}

func (s *Server) handleBoxplot(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.lookupSpecies(w, r)
	if !ok {
		return
	}

	daily, err := s.store.GetDailyCounts(sp.ScientificName, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	type monthEntry struct {
		Year        int   `json:"year"`
		Month       int   `json:"month"`
		DailyCounts []int `json:"dailyCounts"`
	}

	var entries []monthEntry
	for _, dc := range daily {
		n := len(entries)
		if n == 0 || entries[n-1].Year != dc.Year || entries[n-1].Month != dc.Month {
			entries = append(entries, monthEntry{Year: dc.Year, Month: dc.Month})
			n++
		}
		entries[n-1].DailyCounts = append(entries[n-1].DailyCounts, dc.Total)
	}
	if entries == nil {
		entries = []monthEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	sp, date, ok := s.heatmapParams(w, r)
	if !ok {
		return
	}

	asset, err := s.generator.Resolve(r.Context(), sp.ScientificName, date)
	switch {
	case errors.Is(err, heatmap.ErrNoOccurrenceData):
		writeError(w, http.StatusNotFound, "no_occurrence_data", err.Error())
		return
	case errors.Is(err, heatmap.ErrNoClimateData):
		writeError(w, http.StatusInternalServerError, "no_climate_data", err.Error())
		return
	case errors.Is(err, heatmap.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	// Warm the rest of the month in the background; idempotent and
	// re-checked by filename, so a dropped client costs nothing.
	go s.generator.PregenerateMonth(context.Background(), sp.ScientificName, date)

	writeJSON(w, http.StatusOK, map[string]string{"url": asset.URL})
}

func (s *Server) handleHeatmapInvalidate(w http.ResponseWriter, r *http.Request) {
	sp, date, ok := s.heatmapParams(w, r)
	if !ok {
		return
	}
	if err := s.generator.Invalidate(sp.ScientificName, date); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (s *Server) handleNearbyDates(w http.ResponseWriter, r *http.Request) {
	sp, date, ok := s.heatmapParams(w, r)
	if !ok {
		return
	}

	nearby := s.nearby.FindNearby(sp.ScientificName, date)
	resp := map[string]*string{"before": nil, "after": nil}
	if nearby.Before != nil {
		v := nearby.Before.Format("2006-01-02")
		resp["before"] = &v
	}
	if nearby.After != nil {
		v := nearby.After.Format("2006-01-02")
		resp["after"] = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// heatmapParams validates the species and date query params shared by the
// heatmap and nearby-dates routes.
func (s *Server) heatmapParams(w http.ResponseWriter, r *http.Request) (*models.Species, time.Time, bool) {
	name := r.URL.Query().Get("species")
	if name == "" {
		writeError(w, http.StatusBadRequest, "unknown_species", "species query parameter required")
		return nil, time.Time{}, false
	}

	sp, err := s.store.GetSpecies(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return nil, time.Time{}, false
	}
	if sp == nil {
		writeError(w, http.StatusBadRequest, "unknown_species", "unknown species: "+name)
		return nil, time.Time{}, false
	}

	date, ok := parseDateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return nil, time.Time{}, false
	}
	return sp, date, true
}

func (s *Server) lookupSpecies(w http.ResponseWriter, r *http.Request) (*models.Species, bool) {
	name := r.PathValue("species")
	sp, err := s.store.GetSpecies(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return nil, false
	}
	if sp == nil {
		writeError(w, http.StatusNotFound, "unknown_species", "species not found: "+name)
		return nil, false
	}
	return sp, true
}

// parseDateParam rejects both malformed strings and impossible calendar
// dates like 2023-02-30, which time.Parse would otherwise normalize.
func parseDateParam(w http.ResponseWriter, value string) (time.Time, bool) {
	if value == "" {
		writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter required (YYYY-MM-DD)")
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil || t.Format("2006-01-02") != value {
		writeError(w, http.StatusBadRequest, "invalid_date", "invalid date: "+value+" (use YYYY-MM-DD)")
		return time.Time{}, false
	}
	return t, true
}

type flatOccurrence struct {
	ScientificName string  `json:"scientific_name"`
	Species        string  `json:"species"`
	Date           string  `json:"date"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Count          int     `json:"count"`
}

func flatten(occ []models.Occurrence) []flatOccurrence {
	flat := make([]flatOccurrence, 0, len(occ))
	for _, o := range occ {
		flat = append(flat, flatOccurrence{
			ScientificName: o.ScientificName,
			Species:        o.CommonName,
			Date:           o.ObservedOn.Format("2006-01-02"),
			Latitude:       o.Latitude,
			Longitude:      o.Longitude,
			Count:          o.Count,
		})
	}
	return flat
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError emits a structured {error, detail} body so callers can pick a
// UI treatment (suggest nearby dates vs. a hard error) by kind.
func writeError(w http.ResponseWriter, code int, kind, detail string) {
	writeJSON(w, code, map[string]string{"error": kind, "detail": detail})
}

func minKey(m map[int]bool) int {
	first := true
	min := 0
	for k := range m {
		if first || k < min {
			min = k
			first = false
		}
	}
	return min
}

func maxKey(m map[int]bool) int {
	first := true
	max := 0
	for k := range m {
		if first || k > max {
			max = k
			first = false
		}
	}
	return max
}
