package stats

import (
	"math"
	"testing"
	"time"

	"github.com/mpeterson/avimap/internal/models"
)

func occurrence(date string, lat, lon float64, count int) models.Occurrence {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.Occurrence{
		ScientificName: "Turdus migratorius",
		ObservedOn:     d,
		Latitude:       lat,
		Longitude:      lon,
		Count:          count,
	}
}

func TestFitLine(t *testing.T) {
	tests := []struct {
		name          string
		pts           [][2]float64
		x             float64
		want          float64
		wantSlopeZero bool
	}{
		{"increasing trend", [][2]float64{{2021, 10}, {2022, 20}, {2023, 30}}, 2024, 40, false},
		{"flat trend", [][2]float64{{2021, 5}, {2022, 5}, {2023, 5}}, 2030, 5, true},
		{"single point is flat mean", [][2]float64{{2022, 12}}, 2025, 12, true},
		{"duplicate x is flat mean", [][2]float64{{2022, 10}, {2022, 20}}, 2025, 15, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := fitLine(tt.pts)
			got := line.at(tt.x)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("at(%v) = %v, want %v", tt.x, got, tt.want)
			}
			if tt.wantSlopeZero && line.slope != 0 {
				t.Errorf("slope = %v, want 0", line.slope)
			}
		})
	}
}

func TestForecast_OrderedAndClamped(t *testing.T) {
	// Declining June counts that would extrapolate below zero.
	occ := []models.Occurrence{
		occurrence("2020-06-10", 40, -90, 30),
		occurrence("2021-06-10", 40, -90, 20),
		occurrence("2022-06-10", 40, -90, 10),
		occurrence("2023-06-10", 40, -90, 1),
	}

	points := Forecast(occ, 36)
	if len(points) == 0 {
		t.Fatal("no forecast points")
	}

	prev := time.Date(points[0].Year, time.Month(points[0].Month), 1, 0, 0, 0, 0, time.UTC)
	for _, p := range points[1:] {
		cur := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
		if !cur.After(prev) {
			t.Fatalf("points not in chronological order: %v then %v", prev, cur)
		}
		prev = cur
	}

	for _, p := range points {
		if p.Month != 6 {
			t.Errorf("unexpected forecast month %d; only June was observed", p.Month)
		}
		if p.CountPrediction < 0 {
			t.Errorf("prediction %v is negative", p.CountPrediction)
		}
		if p.Lower > p.CountPrediction || p.Upper < p.CountPrediction {
			t.Errorf("band [%v, %v] does not contain prediction %v", p.Lower, p.Upper, p.CountPrediction)
		}
	}
}

func TestForecast_ConfidenceBand(t *testing.T) {
	occ := []models.Occurrence{
		occurrence("2022-05-01", 40, -90, 100),
		occurrence("2023-05-01", 40, -90, 100),
	}

	points := Forecast(occ, 12)
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1 (only May observed)", len(points))
	}

	p := points[0]
	if p.CountPrediction != 100 {
		t.Fatalf("prediction = %v, want 100", p.CountPrediction)
	}
	if math.Abs(p.Lower-90) > 1e-9 || math.Abs(p.Upper-110) > 1e-9 {
		t.Errorf("band = [%v, %v], want [90, 110]", p.Lower, p.Upper)
	}
}

func TestForecast_NoHistory(t *testing.T) {
	if points := Forecast(nil, 12); points != nil {
		t.Errorf("Forecast(nil) = %v, want nil", points)
	}
}

func TestRangeShift_SingleWindowIsZero(t *testing.T) {
	// Fewer than 13 observed months cannot form two comparison windows.
	occ := []models.Occurrence{
		occurrence("2023-04-01", 40, -90, 5),
		occurrence("2023-05-01", 41, -91, 5),
	}

	points := Forecast(occ, 6)
	for _, p := range points {
		if p.RangeNorth != 0 || p.RangeSouth != 0 || p.RangeEast != 0 || p.RangeWest != 0 {
			t.Errorf("range shift = (%v,%v,%v,%v), want zeros", p.RangeNorth, p.RangeSouth, p.RangeEast, p.RangeWest)
		}
	}
}

func TestRangeShift_NorthwardMovement(t *testing.T) {
	// 24 months: first year around lat 40, second year around lat 42.
	var occ []models.Occurrence
	for m := 1; m <= 12; m++ {
		occ = append(occ, occurrence(time.Date(2022, time.Month(m), 15, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), 40, -90, 10))
		occ = append(occ, occurrence(time.Date(2023, time.Month(m), 15, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), 42, -90, 10))
	}

	points := Forecast(occ, 12)
	if len(points) != 12 {
		t.Fatalf("len(points) = %d, want 12", len(points))
	}

	// Twelve months out the shift equals the full window-to-window delta.
	last := points[len(points)-1]
	if math.Abs(last.RangeNorth-2) > 1e-9 {
		t.Errorf("RangeNorth at 12 months = %v, want 2", last.RangeNorth)
	}
	// The boundary moved north, so the southern edge retreated.
	if math.Abs(last.RangeSouth-(-2)) > 1e-9 {
		t.Errorf("RangeSouth at 12 months = %v, want -2", last.RangeSouth)
	}
	if last.RangeEast != 0 || last.RangeWest != 0 {
		t.Errorf("east/west shift = %v/%v, want 0/0", last.RangeEast, last.RangeWest)
	}

	// Nearer months scale proportionally.
	first := points[0]
	if math.Abs(first.RangeNorth-2.0/12) > 1e-9 {
		t.Errorf("RangeNorth at 1 month = %v, want %v", first.RangeNorth, 2.0/12)
	}
}
