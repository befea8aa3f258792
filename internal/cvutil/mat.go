// Package cvutil converts between Go images and OpenCV matrices.
//
// Only single-channel 8-bit matrices cross this boundary. Color inputs are
// reduced to luma with the same weights OpenCV uses for BGR to gray, so a
// region produces identical pixels whichever side does the conversion.
package cvutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ironsheep/image-analyzer/internal/imaging"
)

// ErrEmptyImage is returned when an image or matrix has no pixels.
var ErrEmptyImage = errors.New("empty image")

// GrayBytes returns the luma of img as tightly packed row-major bytes.
//
// *image.Gray input is copied row by row. *imaging.Plane input is rescaled
// from [0,1] to [0,255]. Everything else goes through color.GrayModel.
func GrayBytes(img image.Image) ([]byte, int, int, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0, ErrEmptyImage
	}

	switch src := img.(type) {
	case *imaging.Plane:
		return src.Bytes(), w, h, nil
	case *image.Gray:
		out := make([]byte, w*h)
		for y := 0; y < h; y++ {
			start := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out[y*w:(y+1)*w], src.Pix[start:start+w])
		}
		return out, w, h, nil
	}

	out := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out[y*w+x] = g.Y
		}
	}
	return out, w, h, nil
}

// GrayMat converts img to a single-channel CV_8U matrix. The caller owns the
// returned Mat and must Close it.
func GrayMat(img image.Image) (gocv.Mat, error) {
	data, w, h, err := GrayBytes(img)
	if err != nil {
		return gocv.NewMat(), err
	}

	view, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create matrix: %w", err)
	}
	defer view.Close()

	// The view aliases Go memory; hand back an OpenCV-owned copy.
	return view.Clone(), nil
}

// GrayImage copies a single-channel CV_8U matrix into a new *image.Gray.
func GrayImage(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, ErrEmptyImage
	}
	if m.Channels() != 1 || m.Type() != gocv.MatTypeCV8U {
		return nil, fmt.Errorf("unsupported matrix type %v with %d channels", m.Type(), m.Channels())
	}

	rows, cols := m.Rows(), m.Cols()
	src := m
	if !m.IsContinuous() {
		src = m.Clone()
		defer src.Close()
	}

	data := src.ToBytes()
	if len(data) < rows*cols {
		return nil, fmt.Errorf("matrix data too short: %d bytes for %dx%d", len(data), cols, rows)
	}

	out := image.NewGray(image.Rect(0, 0, cols, rows))
	copy(out.Pix, data[:rows*cols])
	return out, nil
}
