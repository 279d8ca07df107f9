package heatmap

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/mpeterson/avimap/internal/models"
)

const (
	renderWidth  = 1000
	renderHeight = 800
)

var (
	pointFill = color.RGBA{0xff, 0xff, 0x00, 0xf2} // yellow, slightly translucent
	pointEdge = color.RGBA{0x10, 0x10, 0x10, 0xff}
)

// Render rasterizes the climate grid as a banded temperature background and
// plots occurrence points over it. The grid is drawn at native resolution
// and scaled to the output size; points are positioned in the scaled
// coordinate space so they stay geographically accurate.
func Render(grid *models.ClimateGrid, occ []models.Occurrence) ([]byte, error) {
	if grid.Rows == 0 || grid.Cols == 0 {
		return nil, fmt.Errorf("climate grid %s has no cells", grid.Date.Format("2006-01-02"))
	}

	base := image.NewRGBA(image.Rect(0, 0, grid.Cols, grid.Rows))
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			v, ok := grid.At(row, col)
			if !ok {
				base.SetRGBA(col, row, noDataColor)
				continue
			}
			base.SetRGBA(col, row, colorForTemp(celsiusToFahrenheit(v)))
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, renderWidth, renderHeight))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), base, base.Bounds(), draw.Src, nil)

	for _, o := range occ {
		x, y, ok := project(grid, o.Latitude, o.Longitude)
		if !ok {
			continue
		}
		drawPoint(out, x, y)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// project maps a lat/lon onto output pixel coordinates. Points outside the
// grid extent are dropped rather than clamped to the border.
func project(grid *models.ClimateGrid, lat, lon float64) (x, y int, ok bool) {
	minLat, minLon, maxLat, maxLon := grid.Bounds()
	if lat < minLat || lat > maxLat || lon < minLon || lon > maxLon {
		return 0, 0, false
	}
	fx := (lon - minLon) / (maxLon - minLon)
	fy := (maxLat - lat) / (maxLat - minLat)
	return int(fx * float64(renderWidth-1)), int(fy * float64(renderHeight-1)), true
}

// drawPoint paints a small filled disc with a dark edge ring.
func drawPoint(img *image.RGBA, cx, cy int) {
	const radius = 4
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d := dx*dx + dy*dy
			if d > radius*radius {
				continue
			}
			x, y := cx+dx, cy+dy
			if !image.Pt(x, y).In(img.Bounds()) {
				continue
			}
			if d > (radius-1)*(radius-1) {
				img.SetRGBA(x, y, pointEdge)
			} else {
				img.SetRGBA(x, y, pointFill)
			}
		}
	}
}
