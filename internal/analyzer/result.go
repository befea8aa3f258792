package analyzer

import (
	"image"

	"github.com/ironsheep/image-analyzer/internal/imaging"
)

// Prediction is the classification of one box.
type Prediction struct {
	// Box is the 1-based ordinal of the box in Result.Boxes.
	Box        int     `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result is the analysis of one image.
type Result struct {
	ImagePath string `json:"image_path"`
	Model     string `json:"model"`

	// Labels are the model's classes at the time of analysis.
	Labels []string `json:"classes"`

	// Text is the aggregate OCR text.
	Text string `json:"text"`

	// Predictions are ordered by box ordinal. Boxes with no pixels have none.
	Predictions []Prediction `json:"predictions"`

	Boxes []imaging.BoundingBox `json:"bounding_boxes"`

	// Annotated is the source image with every box drawn. It is not serialized.
	Annotated *image.RGBA `json:"-"`
}

// Prediction returns the prediction for the box with the given 1-based ordinal.
func (r *Result) Prediction(box int) (Prediction, bool) {
	for _, p := range r.Predictions {
		if p.Box == box {
			return p, true
		}
	}
	return Prediction{}, false
}

// ByBox indexes predictions by box ordinal.
func (r *Result) ByBox() map[int]Prediction {
	m := make(map[int]Prediction, len(r.Predictions))
	for _, p := range r.Predictions {
		m[p.Box] = p
	}
	return m
}

// Captions maps box ordinals to predicted labels, for rendering.
func (r *Result) Captions() map[int]string {
	m := make(map[int]string, len(r.Predictions))
	for _, p := range r.Predictions {
		m[p.Box] = p.Label
	}
	return m
}
