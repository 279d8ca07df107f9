package heatmap

import "image/color"

// Temperature bands in Fahrenheit and their colors, matching the PRISM
// dashboard palette.
var tempBounds = []float64{
	0, 3, 7, 10, 14, 18, 21, 25, 28, 32, 36, 39, 43,
	46, 50, 54, 57, 61, 64, 68, 72, 75, 79, 82, 86, 90,
}

var tempColors = []color.RGBA{
	{0xf0, 0xf8, 0xff, 0xff}, {0xdc, 0xee, 0xff, 0xff}, {0xc6, 0xe0, 0xff, 0xff},
	{0xad, 0xd3, 0xff, 0xff}, {0x94, 0xc6, 0xff, 0xff}, {0x7b, 0xb9, 0xff, 0xff},
	{0x62, 0xac, 0xff, 0xff}, {0x49, 0x9f, 0xff, 0xff}, {0x30, 0x8f, 0xff, 0xff},
	{0x22, 0x71, 0xd1, 0xff}, {0x17, 0x5a, 0xb1, 0xff}, {0x0e, 0x44, 0x91, 0xff},
	{0x07, 0x30, 0x72, 0xff}, {0x02, 0x1d, 0x52, 0xff}, {0x47, 0x10, 0x6b, 0xff},
	{0x6a, 0x1b, 0x9a, 0xff}, {0x8e, 0x24, 0xaa, 0xff}, {0xab, 0x47, 0xbc, 0xff},
	{0xba, 0x68, 0xc8, 0xff}, {0xce, 0x93, 0xd8, 0xff}, {0xe1, 0xbe, 0xe7, 0xff},
	{0xf4, 0x8f, 0xb1, 0xff}, {0xf0, 0x62, 0x92, 0xff}, {0xec, 0x40, 0x7a, 0xff},
	{0xe9, 0x1e, 0x63, 0xff}, {0xc2, 0x18, 0x5b, 0xff}, {0x88, 0x0e, 0x4f, 0xff},
}

var noDataColor = color.RGBA{0xee, 0xee, 0xee, 0xff}

// colorForTemp maps a temperature in Fahrenheit onto the banded palette.
func colorForTemp(f float64) color.RGBA {
	for i, bound := range tempBounds {
		if f < bound {
			return tempColors[i]
		}
	}
	return tempColors[len(tempColors)-1]
}
