package heatmap

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type setProber struct {
	dates  map[string]bool
	probes int
}

func (p *setProber) HasDataFor(scientificName string, date time.Time) bool {
	p.probes++
	return p.dates[date.Format("2006-01-02")]
}

func proberWith(dates ...string) *setProber {
	m := make(map[string]bool, len(dates))
	for _, d := range dates {
		m[d] = true
	}
	return &setProber{dates: m}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock() clockwork.Clock {
	return clockwork.NewFakeClockAt(day("2023-06-01"))
}

func TestFindNearby_FineWindow(t *testing.T) {
	prober := proberWith("2023-01-10", "2023-01-20")
	r := NewResolver(prober, fixedClock())

	got := r.FindNearby("Turdus migratorius", day("2023-01-15"))

	if got.Before == nil || got.Before.Format("2006-01-02") != "2023-01-10" {
		t.Errorf("Before = %v, want 2023-01-10", got.Before)
	}
	if got.After == nil || got.After.Format("2006-01-02") != "2023-01-20" {
		t.Errorf("After = %v, want 2023-01-20", got.After)
	}
}

func TestFindNearby_NearestWins(t *testing.T) {
	prober := proberWith("2023-01-12", "2023-01-05")
	r := NewResolver(prober, fixedClock())

	got := r.FindNearby("Turdus migratorius", day("2023-01-15"))
	if got.Before == nil || got.Before.Format("2006-01-02") != "2023-01-12" {
		t.Errorf("Before = %v, want nearest date 2023-01-12", got.Before)
	}
}

func TestFindNearby_PartialResult(t *testing.T) {
	prober := proberWith("2023-01-20")
	r := NewResolver(prober, fixedClock())

	got := r.FindNearby("Turdus migratorius", day("2023-01-15"))
	if got.Before != nil {
		t.Errorf("Before = %v, want nil", got.Before)
	}
	if got.After == nil || got.After.Format("2006-01-02") != "2023-01-20" {
		t.Errorf("After = %v, want 2023-01-20", got.After)
	}
}

func TestFindNearby_CoarsePhase(t *testing.T) {
	// Data more than 30 days away, only findable by the year-sampled scan.
	prober := proberWith("2022-07-15", "2023-11-01")
	r := NewResolver(prober, fixedClock())

	got := r.FindNearby("Turdus migratorius", day("2023-01-15"))
	if got.Before == nil || got.Before.Format("2006-01-02") != "2022-07-15" {
		t.Errorf("Before = %v, want 2022-07-15", got.Before)
	}
	if got.After == nil || got.After.Format("2006-01-02") != "2023-11-01" {
		t.Errorf("After = %v, want 2023-11-01", got.After)
	}
}

func TestFindNearby_NoData(t *testing.T) {
	prober := proberWith()
	r := NewResolver(prober, fixedClock())

	got := r.FindNearby("Turdus migratorius", day("2023-01-15"))
	if got.Before != nil || got.After != nil {
		t.Errorf("got %+v, want both nil", got)
	}
}

// The search must terminate in a bounded number of probes even when nothing
// matches: the fine window is 2*30 probes and the coarse phase samples 3
// days across 12 months for a fixed list of years.
func TestFindNearby_Bounded(t *testing.T) {
	prober := proberWith()
	r := NewResolver(prober, fixedClock())
	r.FindNearby("Turdus migratorius", day("2023-01-15"))

	years := len(r.candidateYears(day("2023-01-15")))
	max := 2*fineWindowDays + years*12*3
	if prober.probes > max {
		t.Errorf("probes = %d, want <= %d", prober.probes, max)
	}
}

func TestCandidateYears_Priority(t *testing.T) {
	r := NewResolver(proberWith(), fixedClock()) // clock year 2023

	got := r.candidateYears(day("2020-05-01"))
	want := []int{2023, 2020, 2019, 2021, 2018, 2022}
	if len(got) != len(want) {
		t.Fatalf("years = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("years = %v, want %v", got, want)
		}
	}
}

func TestSampleDays(t *testing.T) {
	days := sampleDays(2023, 2)
	want := []string{"2023-02-01", "2023-02-15", "2023-02-28"}
	for i, d := range days {
		if d.Format("2006-01-02") != want[i] {
			t.Errorf("sampleDays(2023, 2)[%d] = %s, want %s", i, d.Format("2006-01-02"), want[i])
		}
	}
}
