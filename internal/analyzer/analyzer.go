// Package analyzer classifies the text regions of an image.
//
// For every region the OCR step reports, the analyzer crops the region from
// the source image, preprocesses and segments it, and asks the session's
// classifier for a label. Results correlate predictions with boxes by the
// box's 1-based ordinal in detection order.
//
// # Sessions
//
// SetModel loads a registered model and returns a Session: an immutable
// pairing of the loaded classifier with its labels. Sessions are passed to
// Analyze explicitly and are never swapped behind a caller's back, so a failed
// SetModel leaves every existing session usable.
package analyzer

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/image-analyzer/internal/imaging"
	"github.com/ironsheep/image-analyzer/internal/model"
	"github.com/ironsheep/image-analyzer/internal/ocr"
	"github.com/ironsheep/image-analyzer/internal/preprocess"
	"github.com/ironsheep/image-analyzer/internal/registry"
	"github.com/ironsheep/image-analyzer/internal/segment"
)

var (
	// ErrNotReady is returned by Analyze when no model session is given.
	ErrNotReady = errors.New("model has not been set")

	// ErrModelNotFound is returned by SetModel for unregistered names. It
	// also matches registry.ErrNotFound.
	ErrModelNotFound = fmt.Errorf("analyzer: %w", registry.ErrNotFound)

	// ErrLabelMismatch is returned when a classifier's output width differs
	// from the number of labels in the session.
	ErrLabelMismatch = errors.New("model output does not match labels")
)

// Models looks up model descriptors by name. *registry.Registry implements it.
type Models interface {
	Get(name string) (registry.Descriptor, bool)
}

// Detector finds text regions and draws boxes. *ocr.Extractor implements it.
type Detector interface {
	Detect(img image.Image) (*ocr.Detection, error)
	Render(img image.Image, boxes []imaging.BoundingBox) *image.RGBA
}

// Analyzer runs the region classification pipeline.
type Analyzer struct {
	models       Models
	detector     Detector
	preprocessor preprocess.Preprocessor
	segmenter    segment.Segmenter
	loader       model.Loader
}

// New assembles an analyzer from its collaborators.
func New(models Models, detector Detector, pre preprocess.Preprocessor, seg segment.Segmenter, loader model.Loader) *Analyzer {
	return &Analyzer{
		models:       models,
		detector:     detector,
		preprocessor: pre,
		segmenter:    seg,
		loader:       loader,
	}
}

// Session is a loaded model together with its labels.
type Session struct {
	name       string
	path       string
	labels     []string
	classifier model.Classifier
}

// NewSession wraps an already loaded classifier.
func NewSession(name string, labels []string, classifier model.Classifier) *Session {
	l := make([]string, len(labels))
	copy(l, labels)
	return &Session{name: name, labels: l, classifier: classifier}
}

// Name returns the registered model name.
func (s *Session) Name() string { return s.name }

// Path returns the model file the session was loaded from.
func (s *Session) Path() string { return s.path }

// Labels returns a copy of the class labels.
func (s *Session) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Close releases the classifier.
func (s *Session) Close() error {
	if s == nil || s.classifier == nil {
		return nil
	}
	return s.classifier.Close()
}

// SetModel loads the model registered under name.
func (a *Analyzer) SetModel(name string) (*Session, error) {
	d, ok := a.models.Get(name)
	if !ok {
		return nil, fmt.Errorf("model %q: %w", name, ErrModelNotFound)
	}

	classifier, err := a.loader.Load(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %q: %w", name, err)
	}

	s := NewSession(d.Name, d.Labels, classifier)
	s.path = d.Path
	log.Printf("Model %q loaded with classes %v", name, s.labels)
	return s, nil
}

// Analyze runs detection and per-region classification on img.
//
// Boxes are processed in detection order with ordinals starting at 1. A box
// that is empty after clamping to the image is not classified but keeps its
// ordinal and its place in Result.Boxes. The annotated image shows every box.
func (a *Analyzer) Analyze(s *Session, img *imaging.Image) (*Result, error) {
	if s == nil || s.classifier == nil {
		return nil, ErrNotReady
	}
	if img == nil || img.Image == nil {
		return nil, fmt.Errorf("no image to analyze")
	}

	detection, err := a.detector.Detect(img.Image)
	if err != nil {
		return nil, err
	}
	boxes := detection.Boxes()

	predictions := make([]Prediction, 0, len(boxes))
	for i, box := range boxes {
		ordinal := i + 1

		p, ok, err := a.classify(s, img.Image, box)
		if err != nil {
			return nil, fmt.Errorf("failed to classify box %d: %w", ordinal, err)
		}
		if !ok {
			continue
		}
		p.Box = ordinal
		predictions = append(predictions, p)
	}

	return &Result{
		ImagePath:   img.Path,
		Model:       s.name,
		Labels:      s.Labels(),
		Text:        detection.Text,
		Predictions: predictions,
		Boxes:       boxes,
		Annotated:   a.detector.Render(img.Image, boxes),
	}, nil
}

// classify runs one region through the pipeline. The bool is false for
// regions that have no pixels.
func (a *Analyzer) classify(s *Session, img image.Image, box imaging.BoundingBox) (Prediction, bool, error) {
	region, ok := imaging.Crop(img, box)
	if !ok {
		return Prediction{}, false, nil
	}

	plane, err := a.preprocessor.Preprocess(region)
	if errors.Is(err, preprocess.ErrEmptyRegion) {
		return Prediction{}, false, nil
	}
	if err != nil {
		return Prediction{}, false, err
	}

	binary, err := a.segmenter.Segment(plane)
	if err != nil {
		return Prediction{}, false, err
	}

	scores, err := s.classifier.Predict(imaging.PlaneFromGray(binary))
	if err != nil {
		return Prediction{}, false, err
	}
	if len(scores) != len(s.labels) {
		return Prediction{}, false, fmt.Errorf("%w: %d outputs, %d labels", ErrLabelMismatch, len(scores), len(s.labels))
	}

	idx, confidence, err := model.Argmax(model.Distribution(scores))
	if err != nil {
		return Prediction{}, false, err
	}

	return Prediction{Label: s.labels[idx], Confidence: confidence}, true, nil
}

// BatchItem is the outcome for one image of a batch.
type BatchItem struct {
	Path   string
	Result *Result
	Err    error
}

// ProgressFunc is called after each image of a batch.
type ProgressFunc func(done, total int, item BatchItem)

// Batch analyzes images one after another. A failing image is reported in
// its item and does not stop the batch. Only a missing session fails the
// whole call.
func (a *Analyzer) Batch(s *Session, images []*imaging.Image, progress ProgressFunc) ([]BatchItem, error) {
	if s == nil || s.classifier == nil {
		return nil, ErrNotReady
	}

	items := make([]BatchItem, len(images))
	for i, img := range images {
		item := BatchItem{}
		if img != nil {
			item.Path = img.Path
		}
		item.Result, item.Err = a.Analyze(s, img)
		items[i] = item

		if progress != nil {
			progress(i+1, len(images), item)
		}
	}
	return items, nil
}
