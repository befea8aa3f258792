// Package preprocess normalizes cropped text regions for classification.
//
// A region goes through contrast enhancement, denoising and edge masking
// before being fitted into a fixed-size float plane. All heavy lifting is done
// by OpenCV through gocv.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ironsheep/image-analyzer/internal/cvutil"
	"github.com/ironsheep/image-analyzer/internal/imaging"
)

// ErrEmptyRegion is returned for regions with zero width or height.
var ErrEmptyRegion = errors.New("empty region")

// Preprocessor turns a region image into a normalized plane.
type Preprocessor interface {
	Preprocess(region image.Image) (*imaging.Plane, error)
}

// Options configures ContourPreprocessor.
type Options struct {
	// Width and Height are the output plane size.
	Width  int
	Height int

	// ClipLimit and TileGrid configure CLAHE.
	ClipLimit float64
	TileGrid  int

	// DenoiseStrength is the non-local means filter strength h.
	DenoiseStrength float64
	TemplateWindow  int
	SearchWindow    int

	// CannyLow and CannyHigh are the hysteresis thresholds.
	CannyLow  float64
	CannyHigh float64

	// DilateKernel is the side of the square dilation kernel.
	DilateKernel     int
	DilateIterations int
}

// DefaultOptions returns the 64x64 pipeline settings.
func DefaultOptions() Options {
	return Options{
		Width:            64,
		Height:           64,
		ClipLimit:        2.0,
		TileGrid:         8,
		DenoiseStrength:  10,
		TemplateWindow:   7,
		SearchWindow:     21,
		CannyLow:         50,
		CannyHigh:        150,
		DilateKernel:     3,
		DilateIterations: 1,
	}
}

// Validate reports option values the pipeline cannot run with.
func (o Options) Validate() error {
	switch {
	case o.Width <= 0 || o.Height <= 0:
		return fmt.Errorf("invalid target size %dx%d", o.Width, o.Height)
	case o.TileGrid <= 0:
		return fmt.Errorf("invalid CLAHE tile grid %d", o.TileGrid)
	case o.ClipLimit <= 0:
		return fmt.Errorf("invalid CLAHE clip limit %g", o.ClipLimit)
	case o.TemplateWindow <= 0 || o.SearchWindow <= 0:
		return fmt.Errorf("invalid denoise windows %d/%d", o.TemplateWindow, o.SearchWindow)
	case o.CannyLow < 0 || o.CannyHigh < o.CannyLow:
		return fmt.Errorf("invalid Canny thresholds %g/%g", o.CannyLow, o.CannyHigh)
	case o.DilateKernel <= 0 || o.DilateIterations < 0:
		return fmt.Errorf("invalid dilation %dx%d", o.DilateKernel, o.DilateIterations)
	}
	return nil
}

// ContourPreprocessor implements the contour-masking pipeline:
//
//  1. grayscale
//  2. CLAHE
//  3. non-local means denoising
//  4. Canny edges, dilated
//  5. external contours of the edges filled into a mask
//  6. mask AND denoised gray
//  7. aspect-preserving area resize and zero padding to Width x Height
//  8. scale to [0,1]
//
// It is stateless and safe for concurrent use.
type ContourPreprocessor struct {
	opts Options
}

// NewContourPreprocessor validates opts and returns a preprocessor.
func NewContourPreprocessor(opts Options) (*ContourPreprocessor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &ContourPreprocessor{opts: opts}, nil
}

// Options returns the configured options.
func (p *ContourPreprocessor) Options() Options { return p.opts }

// Preprocess runs the pipeline on region.
func (p *ContourPreprocessor) Preprocess(region image.Image) (*imaging.Plane, error) {
	b := region.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyRegion
	}

	gray, err := cvutil.GrayMat(region)
	if err != nil {
		return nil, fmt.Errorf("failed to convert region: %w", err)
	}
	defer gray.Close()

	clahe := gocv.NewCLAHEWithParams(p.opts.ClipLimit, image.Point{X: p.opts.TileGrid, Y: p.opts.TileGrid})
	defer clahe.Close()

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoisingWithParams(enhanced, &denoised, float32(p.opts.DenoiseStrength), p.opts.TemplateWindow, p.opts.SearchWindow)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(denoised, &edges, float32(p.opts.CannyLow), float32(p.opts.CannyHigh))

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: p.opts.DilateKernel, Y: p.opts.DilateKernel})
	defer kernel.Close()

	for i := 0; i < p.opts.DilateIterations; i++ {
		gocv.Dilate(edges, &edges, kernel)
	}

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), edges.Rows(), edges.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() > 0 {
		gocv.DrawContours(&mask, contours, -1, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	}

	masked := gocv.NewMat()
	defer masked.Close()
	gocv.BitwiseAnd(denoised, mask, &masked)

	newW, newH := fitSize(masked.Cols(), masked.Rows(), p.opts.Width, p.opts.Height)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(masked, &resized, image.Point{X: newW, Y: newH}, 0, 0, gocv.InterpolationArea)

	top, bottom, left, right := padding(newW, newH, p.opts.Width, p.opts.Height)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(resized, &padded, top, bottom, left, right, gocv.BorderConstant, color.RGBA{})

	out, err := cvutil.GrayImage(padded)
	if err != nil {
		return nil, fmt.Errorf("failed to read preprocessed region: %w", err)
	}

	return imaging.PlaneFromGray(out), nil
}

// fitSize scales (w, h) to fit inside (targetW, targetH) keeping the aspect
// ratio. Wide regions take the full target width, others the full target
// height; the other side is truncated and never below 1.
func fitSize(w, h, targetW, targetH int) (int, int) {
	aspect := float64(w) / float64(h)

	var newW, newH int
	if aspect > 1 {
		newW = targetW
		newH = int(float64(newW) / aspect)
	} else {
		newH = targetH
		newW = int(float64(newH) * aspect)
	}

	// Non-square targets can push the derived side past its limit.
	if newH > targetH {
		newH = targetH
		newW = int(float64(newH) * aspect)
	}
	if newW > targetW {
		newW = targetW
		newH = int(float64(newW) / aspect)
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}

// padding splits the border needed to grow (w, h) to the target
// symmetrically. Odd remainders go to the bottom and right.
func padding(w, h, targetW, targetH int) (top, bottom, left, right int) {
	dw := targetW - w
	dh := targetH - h
	top = dh / 2
	bottom = dh - top
	left = dw / 2
	right = dw - left
	return top, bottom, left, right
}
