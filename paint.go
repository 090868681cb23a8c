package asciiplay

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Surface is a pre-rendered frame. Image is nil when the surface was
// produced without a painter.
type Surface struct {
	Raster *Raster
	Image  *image.RGBA
}

// Painter draws rasters onto RGBA images with a monospace face. It is safe
// for concurrent use; paints are serialized on the face.
type Painter struct {
	mutex   sync.Mutex
	face    font.Face
	metrics Metrics
}

// NewPainter creates a painter using Go Mono at the metrics' font size.
func NewPainter(m Metrics) (*Painter, error) {
	f, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("asciiplay: NewPainter: parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    m.FontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("asciiplay: NewPainter: new face: %w", err)
	}

	return &Painter{face: face, metrics: m}, nil
}

// Metrics returns the metrics the painter was created with.
func (p *Painter) Metrics() Metrics {
	return p.metrics
}

// Paint renders the raster onto a transparent image. Every glyph is placed
// at its own cell origin so batching never shifts a glyph.
func (p *Painter) Paint(raster *Raster) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, raster.Width, raster.Height))

	p.mutex.Lock()
	defer p.mutex.Unlock()

	ascent := p.face.Metrics().Ascent
	cw := raster.Metrics.CharWidth()

	drawer := &font.Drawer{
		Dst:  img,
		Face: p.face,
	}

	for _, batch := range raster.Batches {
		drawer.Src = image.NewUniform(batch.Color)
		i := 0
		for _, ch := range batch.Text {
			drawer.Dot = fixed.Point26_6{
				X: floatToFixed(batch.X + float64(i)*cw),
				Y: floatToFixed(batch.Y) + ascent,
			}
			drawer.DrawString(string(ch))
			i++
		}
	}

	return img
}

// Surface rasterizes and paints cells in one step.
func (p *Painter) Surface(z Rasterizer, cells *ColoredCells) *Surface {
	raster := z.Rasterize(cells, p.metrics)
	return &Surface{
		Raster: raster,
		Image:  p.Paint(raster),
	}
}

// Flatten composites img over an opaque background.
func Flatten(img image.Image, bg image.Image) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), bg, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
