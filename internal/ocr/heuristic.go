package ocr

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// edgeThreshold is the minimum gray-level step between neighbours counted as an edge.
const edgeThreshold = 30.0

// windowSizes are the sliding windows scanned for text-like edge density,
// roughly matching small to large printed text.
var windowSizes = []struct{ w, h int }{
	{100, 30},
	{150, 40},
	{200, 50},
	{80, 25},
}

// HeuristicEngine locates text-like regions without recognizing them.
//
// It slides windows of several sizes over the image, keeps those whose edge
// density and horizontal structure look like printed text, and merges
// overlapping windows. Words it returns carry an empty Text. It needs no
// native libraries, which makes it useful where Tesseract is not installed.
type HeuristicEngine struct {
	minConfidence float64
}

// NewHeuristicEngine creates an engine dropping regions scoring below minConfidence.
func NewHeuristicEngine(minConfidence float64) *HeuristicEngine {
	return &HeuristicEngine{minConfidence: minConfidence}
}

// Recognize returns the merged text-like regions in reading order
// (top to bottom, then left to right).
func (e *HeuristicEngine) Recognize(img image.Image) ([]Word, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	edges := detectEdges(img, width, height)

	candidates := make([]region, 0)
	for _, ws := range windowSizes {
		stepX := ws.w / 2
		stepY := ws.h / 2

		for y := 0; y <= height-ws.h; y += stepY {
			for x := 0; x <= width-ws.w; x += stepX {
				edgeCount := 0
				for wy := 0; wy < ws.h; wy++ {
					for wx := 0; wx < ws.w; wx++ {
						if edges[y+wy][x+wx] {
							edgeCount++
						}
					}
				}

				area := ws.w * ws.h
				density := float64(edgeCount) / float64(area)

				// Text has medium edge density: not too sparse, not too dense.
				if density < 0.05 || density > 0.4 {
					continue
				}

				horizontalScore := calculateHorizontalScore(edges, x, y, ws.w, ws.h)
				confidence := horizontalScore * (1.0 - math.Abs(density-0.2)/0.2)
				if confidence < e.minConfidence || confidence <= 0 {
					continue
				}

				candidates = append(candidates, region{
					rect:       image.Rect(x, y, x+ws.w, y+ws.h),
					confidence: math.Round(confidence*1000) / 1000,
				})
			}
		}
	}

	merged := mergeOverlappingRegions(candidates)

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].rect.Min, merged[j].rect.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	words := make([]Word, len(merged))
	for i, r := range merged {
		words[i] = Word{Quad: QuadFromRect(r.rect), Confidence: r.confidence}
	}
	return words, nil
}

// Close is a no-op.
func (e *HeuristicEngine) Close() error { return nil }

// Info describes the heuristic backend.
func (e *HeuristicEngine) Info() Info {
	return Info{Available: true, Backend: "heuristic (edge density)"}
}

type region struct {
	rect       image.Rectangle
	confidence float64
}

// detectEdges marks pixels whose gray level differs from the right or lower
// neighbour by more than edgeThreshold. Border pixels are never edges.
func detectEdges(img image.Image, width, height int) [][]bool {
	bounds := img.Bounds()
	edges := make([][]bool, height)

	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				continue
			}

			c := grayValue(img, x+bounds.Min.X, y+bounds.Min.Y)
			cx := grayValue(img, x+1+bounds.Min.X, y+bounds.Min.Y)
			cy := grayValue(img, x+bounds.Min.X, y+1+bounds.Min.Y)

			dx := math.Abs(float64(c) - float64(cx))
			dy := math.Abs(float64(c) - float64(cy))

			if dx > edgeThreshold || dy > edgeThreshold {
				edges[y][x] = true
			}
		}
	}

	return edges
}

func grayValue(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

// calculateHorizontalScore is the share of edge runs that are horizontal.
// Printed text has more horizontal structure than vertical.
func calculateHorizontalScore(edges [][]bool, x, y, w, h int) float64 {
	horizontalRuns := 0
	verticalRuns := 0

	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			if edges[row][col] {
				if !inRun {
					horizontalRuns++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}

	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			if edges[row][col] {
				if !inRun {
					verticalRuns++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}

	if horizontalRuns+verticalRuns == 0 {
		return 0
	}
	return float64(horizontalRuns) / float64(horizontalRuns+verticalRuns)
}

// mergeOverlappingRegions folds each region into the first merged region it
// overlaps, keeping the higher confidence.
func mergeOverlappingRegions(regions []region) []region {
	merged := make([]region, 0, len(regions))

	for _, r := range regions {
		foundMerge := false
		for i := range merged {
			if r.rect.Overlaps(merged[i].rect) {
				merged[i].rect = merged[i].rect.Union(r.rect)
				merged[i].confidence = math.Max(r.confidence, merged[i].confidence)
				foundMerge = true
				break
			}
		}
		if !foundMerge {
			merged = append(merged, r)
		}
	}

	return merged
}
