// Package model runs image classifiers on preprocessed regions.
//
// A Loader turns a model file into a Classifier. The Classifier consumes a
// single-channel plane shaped [1, H, W, 1] (batch, height, width, channel)
// with values in [0,1] and returns one score per class. Scores are turned
// into a predicted class with Distribution and Argmax.
package model

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/image-analyzer/internal/imaging"
)

// ErrNoScores is returned when a classifier produced an empty output.
var ErrNoScores = errors.New("classifier returned no scores")

// Classifier scores a preprocessed region.
type Classifier interface {
	// Predict returns one score per class for input.
	Predict(input *imaging.Plane) ([]float32, error)

	// Close releases runtime resources. Predict must not be called afterwards.
	Close() error
}

// Loader opens model files.
type Loader interface {
	Load(path string) (Classifier, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (Classifier, error)

// Load calls f(path).
func (f LoaderFunc) Load(path string) (Classifier, error) { return f(path) }

// probabilityTolerance is how far the score sum may drift from 1 before the
// output is treated as logits.
const probabilityTolerance = 1e-3

// Distribution returns scores as probabilities.
//
// Scores that already form a probability distribution (every value in [0,1],
// summing to 1 within probabilityTolerance) are returned unchanged. Anything
// else, typically logits from a model without a final softmax layer, is
// softmax-normalized.
func Distribution(scores []float32) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = float64(s)
	}
	if len(out) == 0 || isDistribution(out) {
		return out
	}

	// Shift by the max for numerical stability.
	shift := floats.Max(out)
	for i := range out {
		out[i] = math.Exp(out[i] - shift)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

func isDistribution(p []float64) bool {
	for _, v := range p {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
	}
	return math.Abs(floats.Sum(p)-1) <= probabilityTolerance
}

// Argmax returns the index of the highest probability and its value. Ties go
// to the lowest index.
func Argmax(probs []float64) (int, float64, error) {
	if len(probs) == 0 {
		return 0, 0, ErrNoScores
	}
	idx := floats.MaxIdx(probs)
	return idx, probs[idx], nil
}
