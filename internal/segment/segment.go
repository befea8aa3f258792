// Package segment binarizes preprocessed regions.
package segment

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/image-analyzer/internal/cvutil"
)

// Segmenter separates foreground from background.
type Segmenter interface {
	Segment(img image.Image) (*image.Gray, error)
}

// OtsuSegmenter applies an inverse binary threshold whose level is chosen by
// Otsu's method. Dark strokes on a light background come out as 255 on 0.
//
// Color input is reduced to gray first and *imaging.Plane input is rescaled
// to 8 bits. The output contains only 0 and 255 and has the input's size.
type OtsuSegmenter struct{}

// NewOtsuSegmenter returns a segmenter.
func NewOtsuSegmenter() *OtsuSegmenter { return &OtsuSegmenter{} }

// Segment thresholds img.
func (OtsuSegmenter) Segment(img image.Image) (*image.Gray, error) {
	gray, err := cvutil.GrayMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to segment region: %w", err)
	}
	defer gray.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	return cvutil.GrayImage(binary)
}
