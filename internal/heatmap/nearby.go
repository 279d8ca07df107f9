package heatmap

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mpeterson/avimap/internal/metrics"
)

const (
	// fineWindowDays is the ±day radius of the phase-1 scan.
	fineWindowDays = 30

	// coarseYearSpread limits phase 2 to the requested year, the current
	// year, and this many neighbours either side of each.
	coarseYearSpread = 2
)

// NearbyDates is a best-effort suggestion of alternate dates with data.
// Either side may be nil when nothing was found within the probed horizon.
type NearbyDates struct {
	Before *time.Time `json:"before"`
	After  *time.Time `json:"after"`
}

// DateProber reports whether a heatmap could be served for (species, date):
// either an asset already exists or the data to generate one is present. It
// must never trigger generation.
type DateProber interface {
	HasDataFor(scientificName string, date time.Time) bool
}

// Resolver discovers dates near a requested one for which a heatmap is
// available. It is a discovery aid, not a correctness path: every search is
// bounded and partial results are fine.
type Resolver struct {
	probe DateProber
	clock clockwork.Clock
}

func NewResolver(probe DateProber, clock clockwork.Clock) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{probe: probe, clock: clock}
}

// FindNearby searches outward from the requested date. Phase 1 walks
// ±fineWindowDays day by day in both directions, stopping as soon as both
// sides are found. Phase 2 fills any remaining gap by sampling three days
// per month (1st, 15th, last) across a fixed priority list of years.
func (r *Resolver) FindNearby(scientificName string, requested time.Time) NearbyDates {
	requested = truncateDay(requested)
	var result NearbyDates

	for offset := 1; offset <= fineWindowDays; offset++ {
		if result.Before == nil {
			d := requested.AddDate(0, 0, -offset)
			if r.probeDay(scientificName, d) {
				result.Before = &d
			}
		}
		if result.After == nil {
			d := requested.AddDate(0, 0, offset)
			if r.probeDay(scientificName, d) {
				result.After = &d
			}
		}
		if result.Before != nil && result.After != nil {
			return result
		}
	}

	for _, year := range r.candidateYears(requested) {
		for month := 1; month <= 12; month++ {
			for _, d := range sampleDays(year, month) {
				if !r.probeDay(scientificName, d) {
					continue
				}
				if d.Before(requested) {
					if result.Before == nil || d.After(*result.Before) {
						dd := d
						result.Before = &dd
					}
				} else if d.After(requested) {
					if result.After == nil || d.Before(*result.After) {
						dd := d
						result.After = &dd
					}
				}
			}
		}
		if result.Before != nil && result.After != nil {
			break
		}
	}

	return result
}

func (r *Resolver) probeDay(scientificName string, d time.Time) bool {
	metrics.NearbyProbes.Inc()
	return r.probe.HasDataFor(scientificName, d)
}

// candidateYears orders years by priority: the current year first, then the
// requested year, then neighbours spiraling outward from the requested year.
func (r *Resolver) candidateYears(requested time.Time) []int {
	current := r.clock.Now().UTC().Year()
	seen := make(map[int]bool)
	var years []int

	add := func(y int) {
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}

	add(current)
	add(requested.Year())
	for spread := 1; spread <= coarseYearSpread; spread++ {
		add(requested.Year() - spread)
		add(requested.Year() + spread)
	}
	return years
}

// sampleDays returns the 1st, 15th and last day of a month.
func sampleDays(year, month int) []time.Time {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return []time.Time{first, first.AddDate(0, 0, 14), last}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
