package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/mpeterson/avimap/internal/api"
	"github.com/mpeterson/avimap/internal/heatmap"
	"github.com/mpeterson/avimap/internal/ingest"
	"github.com/mpeterson/avimap/internal/stats"
	"github.com/mpeterson/avimap/internal/store"
)

type cli struct {
	DB string `help:"Path to SQLite database." default:"data/avimap.db" env:"AVIMAP_DB"`

	Serve    serveCmd    `cmd:"" default:"1" help:"Run the dashboard API server."`
	Import   importCmd   `cmd:"" help:"Import data from local files."`
	Fetch    fetchCmd    `cmd:"" help:"Fetch data from upstream sources and import it."`
	Forecast forecastCmd `cmd:"" help:"Precompute and cache forecasts for a species."`
}

type serveCmd struct {
	Port      string `help:"HTTP server port." default:"8080" env:"AVIMAP_PORT"`
	StaticDir string `help:"Directory for generated heatmap assets." default:"data/static" env:"AVIMAP_STATIC_DIR"`
}

type importCmd struct {
	Climate importClimateCmd `cmd:"" help:"Import a directory of PRISM .bil/.hdr rasters."`
}

type importClimateCmd struct {
	Dir      string `arg:"" help:"Directory of <YYYY-MM-DD>.bil/.hdr pairs."`
	Variable string `help:"Climate variable the rasters carry." default:"tmean" enum:"tmean,ppt"`
}

type fetchCmd struct {
	Occurrences fetchOccurrencesCmd `cmd:"" help:"Fetch occurrences for a species from GBIF."`
	Climate     fetchClimateCmd     `cmd:"" help:"Fetch one day of PRISM climate data over FTP."`
}

type fetchOccurrencesCmd struct {
	Species string `arg:"" help:"Scientific name, e.g. 'Turdus migratorius'."`
	From    string `help:"Start date (YYYY-MM-DD)." required:""`
	To      string `help:"End date (YYYY-MM-DD)." required:""`
}

type fetchClimateCmd struct {
	Date     string `help:"Date to fetch (YYYY-MM-DD)." required:""`
	Variable string `help:"Climate variable." default:"tmean" enum:"tmean,ppt"`
	Dir      string `help:"Local directory for downloaded rasters." default:"data/prism"`
}

type forecastCmd struct {
	Species string `arg:"" help:"Scientific name."`
}

func main() {
	var flags cli
	ctx := kong.Parse(&flags,
		kong.Name("avimap"),
		kong.Description("Bird occurrence and climate dashboard backend."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	st, closeDB, err := openStore(flags.DB)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeDB()

	ctx.FatalIfErrorf(ctx.Run(st))
}

func openStore(path string) (*store.Store, func(), error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

func (c *serveCmd) Run(st *store.Store) error {
	assets, err := heatmap.NewDirStore(c.StaticDir, "/static")
	if err != nil {
		return err
	}

	server := api.NewServer(st, assets, c.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

func (c *importClimateCmd) Run(st *store.Store) error {
	importer := ingest.NewImporter(st)
	n, err := importer.ImportClimateDir(c.Dir, c.Variable)
	if err != nil {
		return err
	}
	log.Printf("done: %d grids", n)
	return nil
}

func (c *fetchOccurrencesCmd) Run(st *store.Store) error {
	from, err := parseDay(c.From)
	if err != nil {
		return err
	}
	to, err := parseDay(c.To)
	if err != nil {
		return err
	}

	importer := ingest.NewImporter(st)
	n, err := importer.FetchAndImportOccurrences(ingest.NewGBIFClient(), c.Species, from, to)
	if err != nil {
		return err
	}
	log.Printf("done: %d occurrences", n)
	return nil
}

func (c *fetchClimateCmd) Run(st *store.Store) error {
	date, err := parseDay(c.Date)
	if err != nil {
		return err
	}

	importer := ingest.NewImporter(st)
	if err := importer.FetchAndImportClimate(ingest.NewPRISMFetcher(c.Dir), c.Variable, date); err != nil {
		return err
	}
	log.Printf("done: %s %s", c.Variable, c.Date)
	return nil
}

func (c *forecastCmd) Run(st *store.Store) error {
	occ, err := st.GetAllOccurrences(c.Species)
	if err != nil {
		return err
	}
	if len(occ) == 0 {
		return fmt.Errorf("no occurrences for %s", c.Species)
	}

	points := stats.Forecast(occ, stats.DefaultHorizonMonths)
	if err := st.ReplaceForecasts(c.Species, points); err != nil {
		return err
	}
	log.Printf("cached %d forecast points for %s", len(points), c.Species)
	return nil
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return t, nil
}
