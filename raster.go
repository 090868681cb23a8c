package asciiplay

import (
	"encoding/json"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Empirical defaults for monospace cell geometry and blank detection.
const (
	DefaultCharWidthRatio    = 0.6
	DefaultLineHeightRatio   = 1.11
	DefaultDarknessThreshold = 5
)

// Metrics describes the font geometry a raster is laid out with.
type Metrics struct {
	FontSize        float64
	CharWidthRatio  float64
	LineHeightRatio float64
}

// NewMetrics returns metrics for fontSize with the default ratios.
func NewMetrics(fontSize float64) Metrics {
	return Metrics{
		FontSize:        fontSize,
		CharWidthRatio:  DefaultCharWidthRatio,
		LineHeightRatio: DefaultLineHeightRatio,
	}
}

// CharWidth returns the width of one glyph cell in pixels.
func (m Metrics) CharWidth() float64 {
	return m.FontSize * m.CharWidthRatio
}

// LineHeight returns the height of one row in pixels.
func (m Metrics) LineHeight() float64 {
	return m.FontSize * m.LineHeightRatio
}

// Epoch returns the cache epoch of the font size. Rasters are only
// reusable between equal epochs.
func (m Metrics) Epoch() int {
	return FontEpoch(m.FontSize)
}

// FontEpoch converts a font size into a cache epoch.
func FontEpoch(fontSize float64) int {
	return int(math.Round(fontSize * 100))
}

// RasterBatch is a horizontal run of same-colored, non-blank glyphs drawn
// with one fill operation.
type RasterBatch struct {
	Text string
	// X and Y are the pixel origin; the text baseline is the top of the cell.
	X, Y float64
	// Row and Column locate the first glyph in the cell grid.
	Row, Column int
	Color       color.RGBA
}

// Hex returns the batch color as #rrggbb.
func (b RasterBatch) Hex() string {
	c, _ := colorful.MakeColor(b.Color)
	return c.Hex()
}

// MarshalJSON encodes the batch with a hex color.
func (b RasterBatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text   string  `json:"text"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Row    int     `json:"row"`
		Column int     `json:"col"`
		Color  string  `json:"color"`
	}{b.Text, b.X, b.Y, b.Row, b.Column, b.Hex()})
}

// Raster is the drawable form of a colored frame.
type Raster struct {
	// Width and Height are the surface size in pixels.
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Metrics Metrics       `json:"-"`
	Batches []RasterBatch `json:"batches"`
}

// Rasterizer converts colored cells into raster batches.
type Rasterizer struct {
	// DarknessThreshold treats cells whose channels are all below it as
	// transparent background.
	DarknessThreshold uint8
}

// DefaultRasterizer uses the default darkness threshold.
var DefaultRasterizer = Rasterizer{DarknessThreshold: DefaultDarknessThreshold}

// Blank reports whether a cell is skipped: a space, or too dark to see.
func (z Rasterizer) Blank(glyph, r, g, b byte) bool {
	t := z.DarknessThreshold
	return glyph == ' ' || (r < t && g < t && b < t)
}

// Rasterize lays out cells with metrics m. Consecutive non-blank cells of a
// row that share the exact same color collapse into one batch.
func (z Rasterizer) Rasterize(cells *ColoredCells, m Metrics) *Raster {
	cw := m.CharWidth()
	lh := m.LineHeight()

	raster := &Raster{
		Width:   int(math.Ceil(float64(cells.Width) * cw)),
		Height:  int(math.Ceil(float64(cells.Height) * lh)),
		Metrics: m,
	}

	var batch strings.Builder
	for row := 0; row < cells.Height; row++ {
		col := 0
		for col < cells.Width {
			glyph, r, g, b := cells.At(col, row)
			if z.Blank(glyph, r, g, b) {
				col++
				continue
			}

			batch.Reset()
			batch.WriteRune(rune(glyph))
			start := col
			col++

			for col < cells.Width {
				ng, nr, ngr, nb := cells.At(col, row)
				if nr != r || ngr != g || nb != b || z.Blank(ng, nr, ngr, nb) {
					break
				}
				batch.WriteRune(rune(ng))
				col++
			}

			raster.Batches = append(raster.Batches, RasterBatch{
				Text:   batch.String(),
				X:      float64(start) * cw,
				Y:      float64(row) * lh,
				Row:    row,
				Column: start,
				Color:  color.RGBA{R: r, G: g, B: b, A: 0xff},
			})
		}
	}

	return raster
}
