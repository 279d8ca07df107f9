package ingest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mpeterson/avimap/internal/models"
)

// PRISM daily rasters arrive as ESRI BIL/HDR pairs. The import pipeline
// renames them to <YYYY-MM-DD>.bil / .hdr so the grid date is carried by the
// filename itself.

type bilHeader struct {
	rows      int
	cols      int
	nbits     int
	bigEndian bool
	ulxmap    float64 // longitude of the upper-left cell center
	ulymap    float64 // latitude of the upper-left cell center
	xdim      float64
	ydim      float64
	nodata    float64
}

// ReadPRISMGrid parses a .bil/.hdr pair into a climate grid. bilPath names
// the .bil file; the matching .hdr must sit next to it and the filename stem
// must be the grid date in YYYY-MM-DD form.
func ReadPRISMGrid(bilPath, variable string) (*models.ClimateGrid, error) {
	stem := strings.TrimSuffix(filepath.Base(bilPath), filepath.Ext(bilPath))
	date, err := time.Parse("2006-01-02", stem)
	if err != nil {
		return nil, fmt.Errorf("grid filename %q is not a YYYY-MM-DD date: %w", stem, err)
	}

	hdr, err := readBILHeader(strings.TrimSuffix(bilPath, filepath.Ext(bilPath)) + ".hdr")
	if err != nil {
		return nil, err
	}

	cells, err := readBILCells(bilPath, hdr)
	if err != nil {
		return nil, err
	}

	return &models.ClimateGrid{
		Date:     date,
		Variable: variable,
		Rows:     hdr.rows,
		Cols:     hdr.cols,
		// ULXMAP/ULYMAP reference the upper-left cell center; shift by half
		// a cell to the grid edge.
		OriginLat: hdr.ulymap + hdr.ydim/2,
		OriginLon: hdr.ulxmap - hdr.xdim/2,
		StepLat:   hdr.ydim,
		StepLon:   hdr.xdim,
		NoData:    hdr.nodata,
		Cells:     cells,
	}, nil
}

func readBILHeader(path string) (*bilHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open header: %w", err)
	}
	defer f.Close()

	hdr := &bilHeader{nbits: 32, nodata: -9999}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.ToUpper(fields[0])
		value := fields[1]

		switch key {
		case "NROWS":
			hdr.rows, err = strconv.Atoi(value)
		case "NCOLS":
			hdr.cols, err = strconv.Atoi(value)
		case "NBITS":
			hdr.nbits, err = strconv.Atoi(value)
		case "BYTEORDER":
			hdr.bigEndian = strings.EqualFold(value, "M")
		case "ULXMAP":
			hdr.ulxmap, err = strconv.ParseFloat(value, 64)
		case "ULYMAP":
			hdr.ulymap, err = strconv.ParseFloat(value, 64)
		case "XDIM":
			hdr.xdim, err = strconv.ParseFloat(value, 64)
		case "YDIM":
			hdr.ydim, err = strconv.ParseFloat(value, 64)
		case "NODATA":
			hdr.nodata, err = strconv.ParseFloat(value, 64)
		}
		if err != nil {
			return nil, fmt.Errorf("header field %s=%q: %w", key, value, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if hdr.rows <= 0 || hdr.cols <= 0 {
		return nil, fmt.Errorf("header %s: invalid dimensions %dx%d", path, hdr.rows, hdr.cols)
	}
	if hdr.nbits != 32 {
		return nil, fmt.Errorf("header %s: unsupported NBITS %d (want 32-bit float)", path, hdr.nbits)
	}
	return hdr, nil
}

func readBILCells(path string, hdr *bilHeader) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}

	want := hdr.rows * hdr.cols * 4
	if len(raw) < want {
		return nil, fmt.Errorf("raster %s: %d bytes, want %d", path, len(raw), want)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if hdr.bigEndian {
		order = binary.BigEndian
	}

	cells := make([]float64, hdr.rows*hdr.cols)
	for i := range cells {
		bits := order.Uint32(raw[i*4:])
		cells[i] = float64(math.Float32frombits(bits))
	}
	return cells, nil
}
