package imaging

import (
	"image"
	"image/color"
	"math"
)

// Plane is a single-channel float32 raster with values in [0,1].
//
// Plane implements image.Image, reporting each sample as an 8-bit gray value,
// so it can be handed to any consumer that accepts images. Consumers that care
// about full precision read Pix directly.
type Plane struct {
	// Pix holds the samples in row-major order, Width*Height entries.
	Pix    []float32
	Width  int
	Height int
}

// NewPlane allocates a zero-filled plane.
func NewPlane(width, height int) *Plane {
	return &Plane{
		Pix:    make([]float32, width*height),
		Width:  width,
		Height: height,
	}
}

// PlaneFromGray scales an 8-bit gray image to [0,1].
func PlaneFromGray(g *image.Gray) *Plane {
	b := g.Bounds()
	p := NewPlane(b.Dx(), b.Dy())
	for y := 0; y < p.Height; y++ {
		start := g.PixOffset(b.Min.X, b.Min.Y+y)
		row := g.Pix[start : start+p.Width]
		for x, v := range row {
			p.Pix[y*p.Width+x] = float32(v) / 255.0
		}
	}
	return p
}

// At returns the sample at (x, y); out-of-range coordinates yield 0.
func (p *Plane) At(x, y int) color.Color {
	return color.Gray{Y: p.Gray8(x, y)}
}

// Value returns the raw float sample at (x, y); out-of-range coordinates yield 0.
func (p *Plane) Value(x, y int) float32 {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return 0
	}
	return p.Pix[y*p.Width+x]
}

// Gray8 returns the sample at (x, y) rescaled to [0,255] and clamped.
func (p *Plane) Gray8(x, y int) uint8 {
	v := math.Round(float64(p.Value(x, y)) * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Bytes returns all samples rescaled to [0,255], row-major.
func (p *Plane) Bytes() []byte {
	out := make([]byte, len(p.Pix))
	for i := range p.Pix {
		out[i] = p.Gray8(i%p.Width, i/p.Width)
	}
	return out
}

// Bounds returns the plane rectangle anchored at the origin.
func (p *Plane) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

// ColorModel returns the gray color model.
func (p *Plane) ColorModel() color.Model { return color.GrayModel }
