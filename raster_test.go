package asciiplay

import (
	"encoding/json"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellsOf(width, height int, glyphs string, rgb ...byte) *ColoredCells {
	return &ColoredCells{Width: width, Height: height, Glyphs: []byte(glyphs), RGB: rgb}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(10)
	assert.InDelta(t, 6.0, m.CharWidth(), 1e-9)
	assert.InDelta(t, 11.1, m.LineHeight(), 1e-9)
	assert.Equal(t, 1000, m.Epoch())
	assert.Equal(t, 1250, FontEpoch(12.5))
	assert.Equal(t, FontEpoch(12.339), FontEpoch(12.341))
	assert.NotEqual(t, FontEpoch(12), FontEpoch(12.01))
}

func TestRasterizeBatchesSameColorRuns(t *testing.T) {
	cells := cellsOf(3, 1, "abc",
		255, 0, 0,
		255, 0, 0,
		0, 255, 0,
	)

	raster := DefaultRasterizer.Rasterize(cells, NewMetrics(10))
	require.Len(t, raster.Batches, 2)

	assert.Equal(t, "ab", raster.Batches[0].Text)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, raster.Batches[0].Color)
	assert.Equal(t, 0.0, raster.Batches[0].X)
	assert.Equal(t, 0.0, raster.Batches[0].Y)

	assert.Equal(t, "c", raster.Batches[1].Text)
	assert.InDelta(t, 12.0, raster.Batches[1].X, 1e-9)
	assert.Equal(t, 2, raster.Batches[1].Column)

	assert.Equal(t, 18, raster.Width)
	assert.Equal(t, 12, raster.Height)
}

func TestRasterizeSkipsBlankCells(t *testing.T) {
	cells := cellsOf(2, 2, "a b ",
		200, 200, 200,
		200, 200, 200,
		4, 4, 4,
		9, 9, 9,
	)

	raster := DefaultRasterizer.Rasterize(cells, NewMetrics(10))
	require.Len(t, raster.Batches, 1)
	assert.Equal(t, "a", raster.Batches[0].Text)
}

func TestRasterizeDarkCellsSplitRuns(t *testing.T) {
	cells := cellsOf(3, 1, "xyz",
		50, 50, 50,
		1, 2, 3,
		50, 50, 50,
	)

	raster := DefaultRasterizer.Rasterize(cells, NewMetrics(10))
	require.Len(t, raster.Batches, 2)
	assert.Equal(t, "x", raster.Batches[0].Text)
	assert.Equal(t, "z", raster.Batches[1].Text)
}

func TestRasterizeRowOrigins(t *testing.T) {
	cells := cellsOf(1, 2, "ab",
		100, 0, 0,
		100, 0, 0,
	)

	raster := DefaultRasterizer.Rasterize(cells, NewMetrics(20))
	require.Len(t, raster.Batches, 2)
	assert.Equal(t, 1, raster.Batches[1].Row)
	assert.InDelta(t, 22.2, raster.Batches[1].Y, 1e-9)
}

func TestRasterizeIsDeterministic(t *testing.T) {
	cells := testCells()
	a := DefaultRasterizer.Rasterize(cells, NewMetrics(14))
	b := DefaultRasterizer.Rasterize(cells, NewMetrics(14))
	assert.Equal(t, a, b)
}

func TestRasterizeThreshold(t *testing.T) {
	cells := cellsOf(1, 1, "a", 8, 8, 8)

	assert.Empty(t, Rasterizer{DarknessThreshold: 10}.Rasterize(cells, NewMetrics(10)).Batches)
	assert.Len(t, Rasterizer{DarknessThreshold: 5}.Rasterize(cells, NewMetrics(10)).Batches, 1)
}

func TestRasterBatchJSON(t *testing.T) {
	batch := RasterBatch{Text: "hi", X: 1.5, Y: 2, Row: 3, Column: 4, Color: color.RGBA{R: 255, G: 128, A: 255}}

	data, err := json.Marshal(batch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi","x":1.5,"y":2,"row":3,"col":4,"color":"#ff8000"}`, string(data))
}
