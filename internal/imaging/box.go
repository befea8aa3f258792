package imaging

import (
	"encoding/json"
	"fmt"
	"image"
)

// BoundingBox is an axis-aligned region given by its top-left and bottom-right
// corners in source-image pixel space.
//
// A box whose width or height is not positive has zero area; such boxes are
// kept in result lists but never classified.
type BoundingBox struct {
	TopLeft     image.Point
	BottomRight image.Point
}

// NewBox builds a box from corner coordinates.
func NewBox(x1, y1, x2, y2 int) BoundingBox {
	return BoundingBox{TopLeft: image.Pt(x1, y1), BottomRight: image.Pt(x2, y2)}
}

// Width returns the horizontal extent, which is negative for inverted boxes.
func (b BoundingBox) Width() int { return b.BottomRight.X - b.TopLeft.X }

// Height returns the vertical extent, which is negative for inverted boxes.
func (b BoundingBox) Height() int { return b.BottomRight.Y - b.TopLeft.Y }

// Empty reports whether the box has zero area.
func (b BoundingBox) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Rect converts the box to an image.Rectangle without canonicalizing it.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rectangle{Min: b.TopLeft, Max: b.BottomRight}
}

// Clamp returns the part of the box inside bounds. The result is empty when the
// box does not intersect bounds.
func (b BoundingBox) Clamp(bounds image.Rectangle) BoundingBox {
	if b.Empty() {
		return b
	}
	r := b.Rect().Intersect(bounds)
	return BoundingBox{TopLeft: r.Min, BottomRight: r.Max}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("Top-Left (%d, %d), Bottom-Right (%d, %d)",
		b.TopLeft.X, b.TopLeft.Y, b.BottomRight.X, b.BottomRight.Y)
}

// MarshalJSON encodes the box as [[x1, y1], [x2, y2]].
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([2][2]int{
		{b.TopLeft.X, b.TopLeft.Y},
		{b.BottomRight.X, b.BottomRight.Y},
	})
}

// UnmarshalJSON decodes the [[x1, y1], [x2, y2]] form.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var corners [][]int
	if err := json.Unmarshal(data, &corners); err != nil {
		return fmt.Errorf("invalid bounding box: %w", err)
	}
	if len(corners) != 2 || len(corners[0]) != 2 || len(corners[1]) != 2 {
		return fmt.Errorf("invalid bounding box: want [[x1, y1], [x2, y2]], got %s", data)
	}
	*b = NewBox(corners[0][0], corners[0][1], corners[1][0], corners[1][1])
	return nil
}
