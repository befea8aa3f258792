package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// Crop extracts the pixels inside box from img.
//
// The box is clamped to the image bounds first. The second return value is
// false when nothing is left after clamping; callers skip such regions. The
// returned image is a copy with its origin at (0,0).
func Crop(img image.Image, box BoundingBox) (image.Image, bool) {
	bounds := img.Bounds()

	// Boxes are expressed relative to the image origin.
	shifted := BoundingBox{
		TopLeft:     box.TopLeft.Add(bounds.Min),
		BottomRight: box.BottomRight.Add(bounds.Min),
	}
	clamped := shifted.Clamp(bounds)
	if clamped.Empty() {
		return nil, false
	}

	return imaging.Crop(img, clamped.Rect()), true
}
