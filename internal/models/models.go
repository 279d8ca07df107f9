package models

import (
	"database/sql"
	"time"
)

type Species struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name"`
}

// Occurrence is a single recorded sighting. Rows are written once at import
// time and never mutated afterwards.
type Occurrence struct {
	ID             int64           `json:"-"`
	ScientificName string          `json:"scientific_name"`
	CommonName     string          `json:"species"`
	ObservedOn     time.Time       `json:"date"`
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	Count          int             `json:"count"`
	Temperature    sql.NullFloat64 `json:"-"`
	Precipitation  sql.NullFloat64 `json:"-"`
	CreatedAt      time.Time       `json:"-"`
}

// ClimateGrid is one gridded snapshot of a climate variable for a single
// date. Cells are stored row-major from the upper-left origin: OriginLat is
// the latitude of the top edge, and StepLat/StepLon are positive cell sizes
// in degrees.
type ClimateGrid struct {
	Date      time.Time
	Variable  string // "tmean" or "ppt"
	Rows      int
	Cols      int
	OriginLat float64
	OriginLon float64
	StepLat   float64
	StepLon   float64
	NoData    float64
	Cells     []float64 // len = Rows*Cols
}

// At returns the cell value at (row, col) and whether it holds data.
func (g *ClimateGrid) At(row, col int) (float64, bool) {
	v := g.Cells[row*g.Cols+col]
	return v, v != g.NoData
}

// Bounds returns the geographic extent of the grid.
func (g *ClimateGrid) Bounds() (minLat, minLon, maxLat, maxLon float64) {
	maxLat = g.OriginLat
	minLon = g.OriginLon
	minLat = g.OriginLat - float64(g.Rows)*g.StepLat
	maxLon = g.OriginLon + float64(g.Cols)*g.StepLon
	return
}

// SeasonalSummary is the five-number summary of daily counts for one
// (species, year, month) group. Derived data, recomputed from occurrences.
type SeasonalSummary struct {
	Year     int       `json:"year"`
	Month    int       `json:"month"`
	Average  float64   `json:"average_count"`
	Min      float64   `json:"min_count"`
	Q1       float64   `json:"q1_count"`
	Median   float64   `json:"median_count"`
	Q3       float64   `json:"q3_count"`
	Max      float64   `json:"max_count"`
	Outliers []float64 `json:"outliers"`
}

// ForecastPoint is a projected monthly occurrence count with estimated
// range-boundary shifts in degrees. Lower/Upper is a fixed proportional
// envelope around the point prediction, not a statistical confidence
// interval.
type ForecastPoint struct {
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	CountPrediction float64 `json:"count_prediction"`
	RangeNorth      float64 `json:"range_north"`
	RangeSouth      float64 `json:"range_south"`
	RangeEast       float64 `json:"range_east"`
	RangeWest       float64 `json:"range_west"`
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
}

// HeatmapAsset references a generated heatmap image on stable storage.
// At most one asset is canonical per (species, date) key.
type HeatmapAsset struct {
	ScientificName string    `json:"scientific_name"`
	Date           time.Time `json:"date"`
	Filename       string    `json:"filename"`
	URL            string    `json:"url"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// DailyCount is the summed occurrence count for one calendar day.
type DailyCount struct {
	Year  int
	Month int
	Day   int
	Total int
}
