package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/image-analyzer/internal/imaging"
)

// Region is one detected text area.
type Region struct {
	Box        imaging.BoundingBox `json:"box"`
	Text       string              `json:"text"`
	Confidence float64             `json:"confidence"`
}

// Detection is the outcome of running text localization on an image.
type Detection struct {
	// Regions are in the order the engine reported them. A region's 1-based
	// position is its box ordinal everywhere downstream.
	Regions []Region `json:"regions"`

	// Text is the space-joined non-empty region texts, in region order.
	Text string `json:"text"`
}

// Boxes returns the region boxes in detection order.
func (d *Detection) Boxes() []imaging.BoundingBox {
	boxes := make([]imaging.BoundingBox, len(d.Regions))
	for i, r := range d.Regions {
		boxes[i] = r.Box
	}
	return boxes
}

// Extractor turns engine output into axis-aligned regions and draws them.
type Extractor struct {
	engine Engine
	style  imaging.Style
}

// NewExtractor wraps an engine. Rendering uses style.
func NewExtractor(engine Engine, style imaging.Style) *Extractor {
	return &Extractor{engine: engine, style: style}
}

// Engine returns the wrapped engine.
func (e *Extractor) Engine() Engine { return e.engine }

// Detect runs the engine on img and converts every reported quad to a box
// spanning its top-left and bottom-right corners.
func (e *Extractor) Detect(img image.Image) (*Detection, error) {
	words, err := e.engine.Recognize(img)
	if err != nil {
		return nil, fmt.Errorf("failed to detect text: %w", err)
	}

	d := &Detection{Regions: make([]Region, len(words))}
	texts := make([]string, 0, len(words))
	for i, w := range words {
		d.Regions[i] = Region{
			Box:        w.Quad.Box(),
			Text:       w.Text,
			Confidence: w.Confidence,
		}
		if w.Text != "" {
			texts = append(texts, w.Text)
		}
	}
	d.Text = strings.Join(texts, " ")

	return d, nil
}

// Render draws boxes onto a copy of img with "Box N" captions.
func (e *Extractor) Render(img image.Image, boxes []imaging.BoundingBox) *image.RGBA {
	return imaging.Render(img, boxes, e.style)
}

// Style returns the rendering style.
func (e *Extractor) Style() imaging.Style { return e.style }

// Close releases the engine.
func (e *Extractor) Close() error { return e.engine.Close() }
