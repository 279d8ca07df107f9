// Package stats computes seasonal summaries and trend forecasts from
// occurrence records.
package stats

import (
	"sort"

	"github.com/mpeterson/avimap/internal/models"
)

const iqrFenceMultiplier = 1.5

// Summarize groups daily counts by month and computes one five-number
// summary per month with data. Counts from other years are ignored and
// months without data are omitted, so an empty year yields an empty slice.
// Ordering of the result follows calendar months.
func Summarize(year int, daily []models.DailyCount) []models.SeasonalSummary {
	byMonth := make(map[int][]float64)
	for _, dc := range daily {
		if dc.Year != year {
			continue
		}
		byMonth[dc.Month] = append(byMonth[dc.Month], float64(dc.Total))
	}

	var summaries []models.SeasonalSummary
	for month := 1; month <= 12; month++ {
		counts, ok := byMonth[month]
		if !ok {
			continue
		}
		s := FiveNumber(counts)
		summaries = append(summaries, models.SeasonalSummary{
			Year:     year,
			Month:    month,
			Average:  s.Average,
			Min:      s.Min,
			Q1:       s.Q1,
			Median:   s.Median,
			Q3:       s.Q3,
			Max:      s.Max,
			Outliers: s.Outliers,
		})
	}
	return summaries
}

// Summary is a five-number summary with IQR-fence outliers. Min and Max are
// whisker ends: the most extreme values still inside the fences, not the
// fences themselves.
type Summary struct {
	Min      float64
	Q1       float64
	Median   float64
	Q3       float64
	Max      float64
	Average  float64
	Outliers []float64
}

// FiveNumber computes the summary of values (|values| >= 1). A single value
// yields q1 = median = q3 = min = max = that value and no outliers.
func FiveNumber(values []float64) Summary {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	s := Summary{
		Q1:       Quantile(sorted, 0.25),
		Median:   Quantile(sorted, 0.5),
		Q3:       Quantile(sorted, 0.75),
		Average:  sum / float64(len(sorted)),
		Outliers: []float64{},
	}

	iqr := s.Q3 - s.Q1
	fenceLow := s.Q1 - iqrFenceMultiplier*iqr
	fenceHigh := s.Q3 + iqrFenceMultiplier*iqr

	first := true
	for _, v := range sorted {
		if v < fenceLow || v > fenceHigh {
			s.Outliers = append(s.Outliers, v)
			continue
		}
		if first {
			s.Min = v
			first = false
		}
		s.Max = v
	}

	// All values outside the fences cannot happen with 1.5*IQR fences, but
	// guard against an empty whisker range anyway.
	if first {
		s.Min = s.Median
		s.Max = s.Median
	}
	return s
}

// Quantile estimates the p-quantile of an ascending-sorted slice by linear
// interpolation between adjacent order statistics. No extrapolation beyond
// the data: p <= 0 returns the minimum, p >= 1 the maximum.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	h := p * float64(n-1)
	lo := int(h)
	frac := h - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
