package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "ita"

// TesseractOptions configures a TesseractEngine.
type TesseractOptions struct {
	// Language is a Tesseract language code such as "ita" or "eng". The
	// matching traineddata file must be installed.
	Language string

	// TessdataPrefix is the directory holding traineddata files. Empty uses
	// the Tesseract default (or TESSDATA_PREFIX).
	TessdataPrefix string

	// MinConfidence drops words whose confidence (0.0 to 1.0) is lower.
	MinConfidence float64
}

// TesseractEngine recognizes words with Tesseract through gosseract.
//
// One client is created per engine and reused for every image. Calls are
// serialized because the underlying client is not safe for concurrent use.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
	opts   TesseractOptions
}

// NewTesseractEngine creates an engine with a fixed target language.
func NewTesseractEngine(opts TesseractOptions) (*TesseractEngine, error) {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}

	client := gosseract.NewClient()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	if err := client.SetLanguage(opts.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	return &TesseractEngine{client: client, opts: opts}, nil
}

// Recognize runs word-level OCR on img.
//
// The image is PNG-encoded in memory and handed to Tesseract; no temporary
// files are written. Words with no visible text are dropped. Confidence is
// rescaled from Tesseract's 0-100 range to 0.0-1.0.
func (e *TesseractEngine) Recognize(img image.Image) ([]Word, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		confidence := box.Confidence / 100.0
		if confidence < e.opts.MinConfidence {
			continue
		}
		words = append(words, Word{
			Quad:       QuadFromRect(box.Box),
			Text:       text,
			Confidence: confidence,
		})
	}

	return words, nil
}

// Close releases the Tesseract client.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// Info reports the Tesseract version and configuration.
func (e *TesseractEngine) Info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := Info{
		Backend:      "gosseract",
		Language:     e.opts.Language,
		TessdataPath: e.opts.TessdataPrefix,
	}
	if e.client == nil {
		info.Error = "engine closed"
		return info
	}
	info.Available = true
	info.Version = e.client.Version()
	return info
}
