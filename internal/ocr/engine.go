package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/image-analyzer/internal/imaging"
)

// Engine names accepted by Open.
const (
	EngineTesseract = "tesseract"
	EngineHeuristic = "heuristic"
)

// Point is a sub-pixel image coordinate as reported by an OCR engine.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is the quadrilateral an engine reports around a word, corners ordered
// top-left, top-right, bottom-right, bottom-left.
type Quad [4]Point

// QuadFromRect builds an axis-aligned quad from a rectangle.
func QuadFromRect(r image.Rectangle) Quad {
	return Quad{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}

// Box reduces the quad to an axis-aligned box spanning its top-left and
// bottom-right corners, truncating each coordinate toward zero. Any rotation
// of the quad is discarded.
func (q Quad) Box() imaging.BoundingBox {
	return imaging.NewBox(int(q[0].X), int(q[0].Y), int(q[2].X), int(q[2].Y))
}

// Word is one text region reported by an engine.
type Word struct {
	Quad       Quad    `json:"quad"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
}

// Engine locates (and usually recognizes) text in an image.
//
// Words are returned in the engine's reading order. Implementations own native
// resources and must be released with Close. Engines are not required to be
// safe for concurrent use.
type Engine interface {
	Recognize(img image.Image) ([]Word, error)
	Close() error
}

// Info describes an engine for diagnostics.
type Info struct {
	Available    bool   `json:"available"`
	Backend      string `json:"backend"`
	Version      string `json:"version,omitempty"`
	Language     string `json:"language,omitempty"`
	TessdataPath string `json:"tessdata_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Describer is implemented by engines that can report their configuration.
type Describer interface {
	Info() Info
}

// Options selects and configures an engine.
type Options struct {
	// Engine is EngineTesseract or EngineHeuristic. Empty selects Tesseract.
	Engine string

	// Language is the Tesseract language code, "ita" when empty.
	Language string

	// TessdataPrefix overrides the Tesseract training data directory.
	TessdataPrefix string

	// MinConfidence drops words scoring below it.
	MinConfidence float64
}

// Open creates the engine named in opts.
func Open(opts Options) (Engine, error) {
	switch strings.ToLower(opts.Engine) {
	case "", EngineTesseract:
		return NewTesseractEngine(TesseractOptions{
			Language:       opts.Language,
			TessdataPrefix: opts.TessdataPrefix,
			MinConfidence:  opts.MinConfidence,
		})
	case EngineHeuristic:
		return NewHeuristicEngine(opts.MinConfidence), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", opts.Engine)
	}
}
