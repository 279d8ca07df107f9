package stats

import (
	"math"
	"sort"
	"time"

	"github.com/mpeterson/avimap/internal/models"
)

const (
	// DefaultHorizonMonths is how far past the last observed month the
	// forecast extends.
	DefaultHorizonMonths = 24

	// confidenceBand is a fixed proportional envelope around the point
	// prediction. It is an acknowledged approximation, not a derived
	// interval.
	confidenceBand = 0.10

	// rangeWindowMonths is the width of the two windows compared when
	// estimating boundary shifts.
	rangeWindowMonths = 12
)

type monthKey struct {
	year  int
	month int
}

type monthTotal struct {
	key    monthKey
	count  float64
	minLat float64
	maxLat float64
	minLon float64
	maxLon float64
}

// Forecast projects monthly occurrence counts over horizonMonths past the
// last observed month. The count trend is a per-month-of-year least-squares
// fit across historical years; boundary shifts come from comparing the
// bounding boxes of the most recent and the preceding 12-month window,
// scaled by how far out the forecast month lies. Returns nil when there is
// no history to project from.
func Forecast(occ []models.Occurrence, horizonMonths int) []models.ForecastPoint {
	if len(occ) == 0 || horizonMonths <= 0 {
		return nil
	}

	totals := monthlyTotals(occ)
	if len(totals) == 0 {
		return nil
	}

	// Per month-of-year trend over (year, total) pairs.
	trends := make(map[int]trendLine)
	byMonth := make(map[int][][2]float64)
	for _, mt := range totals {
		byMonth[mt.key.month] = append(byMonth[mt.key.month], [2]float64{float64(mt.key.year), mt.count})
	}
	for month, pts := range byMonth {
		trends[month] = fitLine(pts)
	}

	shiftN, shiftS, shiftE, shiftW := rangeShift(totals)

	last := totals[len(totals)-1].key
	var points []models.ForecastPoint
	for ahead := 1; ahead <= horizonMonths; ahead++ {
		target := time.Date(last.year, time.Month(last.month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, ahead, 0)
		y, m := target.Year(), int(target.Month())

		trend, ok := trends[m]
		if !ok {
			// Month of year never observed; nothing to extrapolate.
			continue
		}
		predicted := math.Max(0, trend.at(float64(y)))
		scale := float64(ahead) / rangeWindowMonths

		points = append(points, models.ForecastPoint{
			Year:            y,
			Month:           m,
			CountPrediction: predicted,
			RangeNorth:      shiftN * scale,
			RangeSouth:      shiftS * scale,
			RangeEast:       shiftE * scale,
			RangeWest:       shiftW * scale,
			Lower:           predicted * (1 - confidenceBand),
			Upper:           predicted * (1 + confidenceBand),
		})
	}
	return points
}

// monthlyTotals aggregates counts and geographic extents per calendar month,
// ordered chronologically.
func monthlyTotals(occ []models.Occurrence) []monthTotal {
	agg := make(map[monthKey]*monthTotal)
	for _, o := range occ {
		k := monthKey{o.ObservedOn.Year(), int(o.ObservedOn.Month())}
		mt, ok := agg[k]
		if !ok {
			mt = &monthTotal{key: k, minLat: o.Latitude, maxLat: o.Latitude, minLon: o.Longitude, maxLon: o.Longitude}
			agg[k] = mt
		}
		mt.count += float64(o.Count)
		mt.minLat = math.Min(mt.minLat, o.Latitude)
		mt.maxLat = math.Max(mt.maxLat, o.Latitude)
		mt.minLon = math.Min(mt.minLon, o.Longitude)
		mt.maxLon = math.Max(mt.maxLon, o.Longitude)
	}

	totals := make([]monthTotal, 0, len(agg))
	for _, mt := range agg {
		totals = append(totals, *mt)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].key.year != totals[j].key.year {
			return totals[i].key.year < totals[j].key.year
		}
		return totals[i].key.month < totals[j].key.month
	})
	return totals
}

type trendLine struct {
	intercept float64
	slope     float64
}

func (t trendLine) at(x float64) float64 {
	return t.intercept + t.slope*x
}

// fitLine is an ordinary least-squares fit. With fewer than two points the
// trend is flat at the observed mean.
func fitLine(pts [][2]float64) trendLine {
	n := float64(len(pts))
	if len(pts) == 0 {
		return trendLine{}
	}

	var sumX, sumY float64
	for _, p := range pts {
		sumX += p[0]
		sumY += p[1]
	}
	if len(pts) < 2 {
		return trendLine{intercept: sumY / n}
	}

	meanX, meanY := sumX/n, sumY/n
	var num, den float64
	for _, p := range pts {
		num += (p[0] - meanX) * (p[1] - meanY)
		den += (p[0] - meanX) * (p[0] - meanX)
	}
	if den == 0 {
		return trendLine{intercept: meanY}
	}
	slope := num / den
	return trendLine{intercept: meanY - slope*meanX, slope: slope}
}

// rangeShift compares the occurrence bounding box of the latest 12 observed
// months against the 12 months before that. Positive north/east values mean
// the boundary moved north/east; positive south/west mean it moved
// south/west. With a single window all shifts are zero.
func rangeShift(totals []monthTotal) (north, south, east, west float64) {
	if len(totals) <= rangeWindowMonths {
		return 0, 0, 0, 0
	}

	split := len(totals) - rangeWindowMonths
	earlierStart := 0
	if split > rangeWindowMonths {
		earlierStart = split - rangeWindowMonths
	}

	earlier := boundsOf(totals[earlierStart:split])
	recent := boundsOf(totals[split:])

	north = recent.maxLat - earlier.maxLat
	south = earlier.minLat - recent.minLat
	east = recent.maxLon - earlier.maxLon
	west = earlier.minLon - recent.minLon
	return
}

type bbox struct {
	minLat, maxLat, minLon, maxLon float64
}

func boundsOf(totals []monthTotal) bbox {
	b := bbox{
		minLat: totals[0].minLat, maxLat: totals[0].maxLat,
		minLon: totals[0].minLon, maxLon: totals[0].maxLon,
	}
	for _, mt := range totals[1:] {
		b.minLat = math.Min(b.minLat, mt.minLat)
		b.maxLat = math.Max(b.maxLat, mt.maxLat)
		b.minLon = math.Min(b.minLon, mt.minLon)
		b.maxLon = math.Max(b.maxLon, mt.maxLon)
	}
	return b
}
