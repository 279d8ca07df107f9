package heatmap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mpeterson/avimap/internal/metrics"
	"github.com/mpeterson/avimap/internal/models"
)

// ClimateVariable is the grid variable rendered as the heatmap background.
const ClimateVariable = "tmean"

// ObservationSource provides the occurrence rows behind a heatmap.
type ObservationSource interface {
	GetOccurrencesByDate(scientificName string, date time.Time, limit int) ([]models.Occurrence, error)
}

// ClimateSource provides the gridded snapshot for a date, nil when absent.
type ClimateSource interface {
	GetClimateGrid(date time.Time, variable string) (*models.ClimateGrid, error)
}

// Generator resolves (species, date) pairs to persisted heatmap assets,
// generating them on demand. Generation for a given key runs at most once
// concurrently: callers that arrive while a render is in flight wait for it
// and share its result.
type Generator struct {
	observations ObservationSource
	climate      ClimateSource
	assets       AssetStore

	mu       sync.Mutex
	inflight map[string]*flight

	writeRetries uint64
}

type flight struct {
	done  chan struct{}
	asset *models.HeatmapAsset
	err   error
}

func NewGenerator(observations ObservationSource, climate ClimateSource, assets AssetStore) *Generator {
	return &Generator{
		observations: observations,
		climate:      climate,
		assets:       assets,
		inflight:     make(map[string]*flight),
		writeRetries: 3,
	}
}

// Resolve returns the asset reference for (species, date), generating and
// persisting the image when no cached asset exists. The filename is
// deterministic, so repeated calls return the same reference.
//
// Failure modes: ErrNoOccurrenceData and ErrNoClimateData are reported
// without retry; asset-store write failures are retried with bounded backoff
// and then surfaced as ErrStorageUnavailable.
func (g *Generator) Resolve(ctx context.Context, scientificName string, date time.Time) (*models.HeatmapAsset, error) {
	key := Filename(scientificName, date)

	if g.assets.Exists(key) {
		metrics.HeatmapCacheHits.Inc()
		return g.assetRef(scientificName, date, key), nil
	}
	metrics.HeatmapCacheMisses.Inc()

	g.mu.Lock()
	if f, ok := g.inflight[key]; ok {
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.asset, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	g.inflight[key] = f
	g.mu.Unlock()

	f.asset, f.err = g.generate(ctx, scientificName, date, key)
	close(f.done)

	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()

	return f.asset, f.err
}

func (g *Generator) generate(ctx context.Context, scientificName string, date time.Time, key string) (*models.HeatmapAsset, error) {
	start := time.Now()

	// Re-check under the flight: another path may have written the asset
	// between the miss and the flight registration.
	if g.assets.Exists(key) {
		return g.assetRef(scientificName, date, key), nil
	}

	occ, err := g.observations.GetOccurrencesByDate(scientificName, date, 0)
	if err != nil {
		metrics.HeatmapGenerations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch occurrences: %w", err)
	}
	if len(occ) == 0 {
		metrics.HeatmapGenerations.WithLabelValues("no_occurrences").Inc()
		return nil, fmt.Errorf("%w: %s on %s", ErrNoOccurrenceData, scientificName, date.Format("2006-01-02"))
	}

	grid, err := g.climate.GetClimateGrid(date, ClimateVariable)
	if err != nil {
		metrics.HeatmapGenerations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch climate grid: %w", err)
	}
	if grid == nil {
		metrics.HeatmapGenerations.WithLabelValues("no_climate").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNoClimateData, date.Format("2006-01-02"))
	}

	data, err := Render(grid, occ)
	if err != nil {
		metrics.HeatmapGenerations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("render heatmap: %w", err)
	}

	if err := g.writeWithRetry(ctx, key, data); err != nil {
		metrics.HeatmapGenerations.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// Verify the write landed before reporting success.
	if !g.assets.Exists(key) {
		metrics.HeatmapGenerations.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("%w: %s missing after write", ErrStorageUnavailable, key)
	}

	metrics.HeatmapGenerations.WithLabelValues("ok").Inc()
	metrics.HeatmapGenerationSeconds.Observe(time.Since(start).Seconds())
	log.Printf("generated heatmap %s (%d points, %d bytes)", key, len(occ), len(data))
	return g.assetRef(scientificName, date, key), nil
}

func (g *Generator) writeWithRetry(ctx context.Context, key string, data []byte) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, g.writeRetries), ctx)

	return backoff.Retry(func() error {
		return g.assets.Write(key, data)
	}, policy)
}

func (g *Generator) assetRef(scientificName string, date time.Time, key string) *models.HeatmapAsset {
	return &models.HeatmapAsset{
		ScientificName: scientificName,
		Date:           date,
		Filename:       key,
		URL:            g.assets.URL(key),
		GeneratedAt:    time.Now().UTC(),
	}
}

// Invalidate removes the cached asset for (species, date). The next Resolve
// regenerates it. This is the only invalidation path; assets never expire on
// their own.
func (g *Generator) Invalidate(scientificName string, date time.Time) error {
	return g.assets.Invalidate(Filename(scientificName, date))
}

// PregenerateMonth renders every missing day in date's month with a small
// worker pool. Generation is idempotent and re-checked by filename, so this
// runs detached from any request and failures are only logged. Days without
// occurrence or climate data are skipped silently.
func (g *Generator) PregenerateMonth(ctx context.Context, scientificName string, date time.Time) {
	const workers = 4

	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, 0).Sub(first).Hours() / 24

	jobs := make(chan time.Time)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for day := range jobs {
				_, err := g.Resolve(ctx, scientificName, day)
				switch {
				case err == nil:
				case isExpectedMiss(err):
				default:
					log.Printf("pregenerate %s %s: %v", scientificName, day.Format("2006-01-02"), err)
				}
			}
		}()
	}

	for d := 0; d < int(days); d++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- first.AddDate(0, 0, d):
		}
	}
	close(jobs)
	wg.Wait()
}

func isExpectedMiss(err error) bool {
	return errors.Is(err, ErrNoOccurrenceData) || errors.Is(err, ErrNoClimateData)
}
