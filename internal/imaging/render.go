package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Style controls how boxes and their labels are drawn.
type Style struct {
	// BoxColor is the rectangle outline color.
	BoxColor color.RGBA

	// LabelColor is the color of the "Box N" caption.
	LabelColor color.RGBA

	// Thickness is the outline width in pixels. Values below 1 draw 1px lines.
	Thickness int

	// LabelOffset is the distance in pixels between the caption baseline and
	// the top edge of the box.
	LabelOffset int
}

// DefaultStyle draws green 2px rectangles with blue captions 10px above them.
func DefaultStyle() Style {
	return Style{
		BoxColor:    color.RGBA{0, 255, 0, 255},
		LabelColor:  color.RGBA{0, 0, 255, 255},
		Thickness:   2,
		LabelOffset: 10,
	}
}

// ParseStyle builds a style from "#rrggbb" color strings. Empty strings keep
// the default colors and a non-positive thickness keeps the default width.
func ParseStyle(boxHex, labelHex string, thickness int) (Style, error) {
	style := DefaultStyle()

	if boxHex != "" {
		c, err := parseHexColor(boxHex)
		if err != nil {
			return Style{}, fmt.Errorf("invalid box color %q: %w", boxHex, err)
		}
		style.BoxColor = c
	}
	if labelHex != "" {
		c, err := parseHexColor(labelHex)
		if err != nil {
			return Style{}, fmt.Errorf("invalid label color %q: %w", labelHex, err)
		}
		style.LabelColor = c
	}
	if thickness > 0 {
		style.Thickness = thickness
	}

	return style, nil
}

func parseHexColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Render returns a copy of img with every box outlined and captioned
// "Box N", N being the 1-based position in boxes.
//
// Boxes are clipped to the image. Inverted boxes and boxes lying entirely
// outside the image are skipped; Render never fails.
func Render(img image.Image, boxes []BoundingBox, style Style) *image.RGBA {
	return RenderPredictions(img, boxes, nil, style)
}

// RenderPredictions is Render with per-box captions. A caption present in
// labels under a box ordinal is drawn as "Box N: <label>"; other boxes get the
// plain "Box N" caption.
func RenderPredictions(img image.Image, boxes []BoundingBox, labels map[int]string, style Style) *image.RGBA {
	out := clone.AsRGBA(img)
	bounds := out.Bounds()

	for i, box := range boxes {
		ordinal := i + 1
		if box.Width() < 0 || box.Height() < 0 {
			continue
		}
		r := image.Rectangle{
			Min: box.TopLeft.Add(bounds.Min),
			Max: box.BottomRight.Add(bounds.Min),
		}
		if r.Max.X < bounds.Min.X || r.Max.Y < bounds.Min.Y || r.Min.X >= bounds.Max.X || r.Min.Y >= bounds.Max.Y {
			continue
		}

		drawRect(out, r, style.BoxColor, style.Thickness)

		caption := fmt.Sprintf("Box %d", ordinal)
		if label, ok := labels[ordinal]; ok && label != "" {
			caption = fmt.Sprintf("Box %d: %s", ordinal, label)
		}
		drawCaption(out, r.Min.X, r.Min.Y-style.LabelOffset, caption, style.LabelColor)
	}

	return out
}

// drawRect outlines r with lines of the given thickness centered on its edges.
func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	lo := -(thickness - 1) / 2
	hi := thickness / 2
	for d := lo; d <= hi; d++ {
		hline(img, r.Min.X-d, r.Max.X+d, r.Min.Y-d, c)
		hline(img, r.Min.X-d, r.Max.X+d, r.Max.Y+d, c)
		vline(img, r.Min.X-d, r.Min.Y-d, r.Max.Y+d, c)
		vline(img, r.Max.X+d, r.Min.Y-d, r.Max.Y+d, c)
	}
}

// hline draws the inclusive span x0..x1 on row y, clipped to the image.
func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	x0 = clamp(x0, b.Min.X, b.Max.X-1)
	x1 = clamp(x1, b.Min.X, b.Max.X-1)
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

// vline draws the inclusive span y0..y1 on column x, clipped to the image.
func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	y0 = clamp(y0, b.Min.Y, b.Max.Y-1)
	y1 = clamp(y1, b.Min.Y, b.Max.Y-1)
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, c)
	}
}

// drawCaption draws text with its baseline at (x, y). The baseline is pushed
// down when the caption would start above the image.
func drawCaption(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	if minY := img.Bounds().Min.Y + ascent; y < minY {
		y = minY
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
