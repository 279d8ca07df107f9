package ingest

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

const testHeader = `BYTEORDER      I
LAYOUT         BIL
NROWS          2
NCOLS          3
NBANDS         1
NBITS          32
BANDROWBYTES   12
TOTALROWBYTES  12
PIXELTYPE      FLOAT
ULXMAP         -125.0
ULYMAP         49.9166666666687
XDIM           0.04166666666667
YDIM           0.04166666666667
NODATA         -9999
`

func writeTestRaster(t *testing.T, name string, values []float32) string {
	t.Helper()
	dir := t.TempDir()

	hdrPath := filepath.Join(dir, name+".hdr")
	if err := os.WriteFile(hdrPath, []byte(testHeader), 0644); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	bilPath := filepath.Join(dir, name+".bil")
	if err := os.WriteFile(bilPath, buf, 0644); err != nil {
		t.Fatal(err)
	}
	return bilPath
}

func TestReadPRISMGrid(t *testing.T) {
	values := []float32{1.5, 2.5, -9999, 4, 5, 6}
	bilPath := writeTestRaster(t, "2023-01-15", values)

	grid, err := ReadPRISMGrid(bilPath, "tmean")
	if err != nil {
		t.Fatalf("ReadPRISMGrid: %v", err)
	}

	if grid.Date.Format("2006-01-02") != "2023-01-15" {
		t.Errorf("Date = %v, want 2023-01-15", grid.Date)
	}
	if grid.Variable != "tmean" {
		t.Errorf("Variable = %q, want tmean", grid.Variable)
	}
	if grid.Rows != 2 || grid.Cols != 3 {
		t.Errorf("dimensions = %dx%d, want 2x3", grid.Rows, grid.Cols)
	}
	for i, want := range values {
		if float32(grid.Cells[i]) != want {
			t.Errorf("Cells[%d] = %v, want %v", i, grid.Cells[i], want)
		}
	}

	// ULXMAP/ULYMAP name the upper-left cell center; the origin is the
	// grid edge, half a cell out.
	wantLat := 49.9166666666687 + 0.04166666666667/2
	wantLon := -125.0 - 0.04166666666667/2
	if math.Abs(grid.OriginLat-wantLat) > 1e-9 {
		t.Errorf("OriginLat = %v, want %v", grid.OriginLat, wantLat)
	}
	if math.Abs(grid.OriginLon-wantLon) > 1e-9 {
		t.Errorf("OriginLon = %v, want %v", grid.OriginLon, wantLon)
	}

	if _, ok := grid.At(0, 2); ok {
		t.Error("At(0,2) should be nodata")
	}
	if v, ok := grid.At(1, 0); !ok || float32(v) != 4 {
		t.Errorf("At(1,0) = %v,%v, want 4,true", v, ok)
	}
}

func TestReadPRISMGrid_BadFilename(t *testing.T) {
	bilPath := writeTestRaster(t, "not-a-date", []float32{1, 2, 3, 4, 5, 6})

	if _, err := ReadPRISMGrid(bilPath, "tmean"); err == nil {
		t.Fatal("expected error for non-date filename")
	}
}

func TestReadPRISMGrid_TruncatedRaster(t *testing.T) {
	bilPath := writeTestRaster(t, "2023-01-15", []float32{1, 2}) // header says 6 cells

	if _, err := ReadPRISMGrid(bilPath, "tmean"); err == nil {
		t.Fatal("expected error for truncated raster")
	}
}

func TestReadPRISMGrid_MissingHeader(t *testing.T) {
	dir := t.TempDir()
	bilPath := filepath.Join(dir, "2023-01-15.bil")
	if err := os.WriteFile(bilPath, make([]byte, 24), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadPRISMGrid(bilPath, "tmean"); err == nil {
		t.Fatal("expected error for missing header")
	}
}
