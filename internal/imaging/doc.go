// Package imaging provides the raster types and image operations shared by the
// analysis pipeline.
//
// This package owns source image loading (with a path-keyed cache), the
// BoundingBox type produced by text localization, box cropping, the float
// Plane raster used between preprocessing and classification, and the box
// renderer that produces annotated copies of source images.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - A BoundingBox is TopLeft (inclusive) to BottomRight (exclusive), which
//     matches image.Rectangle semantics
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Crop and Render never mutate
// their input image; Render always returns a fresh *image.RGBA.
//
// # Error Handling
//
// Loading returns errors for unreadable or undecodable files. Cropping and
// rendering never fail: boxes are clamped to the image bounds, and boxes that do
// not intersect the image are reported as empty (Crop) or skipped (Render).
package imaging
