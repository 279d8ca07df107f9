package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mpeterson/avimap/internal/heatmap"
	"github.com/mpeterson/avimap/internal/store"
)

type Server struct {
	store     *store.Store
	generator *heatmap.Generator
	nearby    *heatmap.Resolver
	assets    *heatmap.DirStore
	port      string
}

func NewServer(st *store.Store, assets *heatmap.DirStore, port string) *Server {
	gen := heatmap.NewGenerator(st, st, assets)
	prober := &dataProber{store: st, assets: assets}
	return &Server{
		store:     st,
		generator: gen,
		nearby:    heatmap.NewResolver(prober, clockwork.NewRealClock()),
		assets:    assets,
		port:      port,
	}
}

// dataProber answers nearby-date probes: a date qualifies when a cached
// asset already exists or the data to generate one is on hand. It never
// triggers generation.
type dataProber struct {
	store  *store.Store
	assets *heatmap.DirStore
}

func (p *dataProber) HasDataFor(scientificName string, date time.Time) bool {
	if p.assets.Exists(heatmap.Filename(scientificName, date)) {
		return true
	}
	has, err := p.store.HasOccurrencesOn(scientificName, date)
	if err != nil || !has {
		return false
	}
	hasGrid, err := p.store.HasClimateGrid(date, heatmap.ClimateVariable)
	return err == nil && hasGrid
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /species_list", s.handleSpeciesList)
	mux.HandleFunc("GET /occurrences/{species}", s.handleOccurrences)
	mux.HandleFunc("GET /recent_occurrences/{species}", s.handleRecentOccurrences)
	mux.HandleFunc("GET /occurrences_by_date/{species}", s.handleOccurrencesByDate)
	mux.HandleFunc("GET /forecasts/{species}", s.handleForecasts)
	mux.HandleFunc("GET /seasonal/{species}", s.handleSeasonal)
	mux.HandleFunc("GET /boxplot/{species}", s.handleBoxplot)
	mux.HandleFunc("GET /heatmap", s.handleHeatmap)
	mux.HandleFunc("DELETE /heatmap", s.handleHeatmapInvalidate)
	mux.HandleFunc("GET /nearby_dates", s.handleNearbyDates)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.assets.Dir()))))
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
