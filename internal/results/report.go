package results

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ironsheep/image-analyzer/internal/analyzer"
)

// WriteReport writes the plain-text report for one result:
//
//	Image: scan.png
//	Model: Default
//	Classes: a, b
//
//	Predictions:
//	  Box 1: a (Confidence: 0.91)
//	    Coordinates: Top-Left (10, 40), Bottom-Right (50, 60)
//
// Boxes without a prediction are listed as "no prediction".
func WriteReport(w io.Writer, r *analyzer.Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Image: %s\n", filepath.Base(r.ImagePath))
	fmt.Fprintf(bw, "Model: %s\n", r.Model)
	fmt.Fprintf(bw, "Classes: %s\n\n", strings.Join(r.Labels, ", "))
	if r.Text != "" {
		fmt.Fprintf(bw, "Text: %s\n\n", r.Text)
	}

	fmt.Fprintln(bw, "Predictions:")
	byBox := r.ByBox()
	for i, box := range r.Boxes {
		ordinal := i + 1
		if p, ok := byBox[ordinal]; ok {
			fmt.Fprintf(bw, "  Box %d: %s (Confidence: %.2f)\n", ordinal, p.Label, p.Confidence)
		} else {
			fmt.Fprintf(bw, "  Box %d: no prediction\n", ordinal)
		}
		fmt.Fprintf(bw, "    Coordinates: %s\n", box)
	}

	return bw.Flush()
}

// Report returns the text WriteReport would write.
func Report(r *analyzer.Result) string {
	var sb strings.Builder
	WriteReport(&sb, r)
	return sb.String()
}
