// Package ocr locates text regions in images.
//
// An Engine reports words as quadrilaterals with optional recognized text.
// The Extractor reduces those quads to axis-aligned boxes, assembles the
// aggregate text and draws boxes back onto images.
//
// # Engines
//
//   - TesseractEngine: word-level recognition through gosseract/v2. Tesseract
//     and the traineddata for the configured language must be installed. The
//     default language is Italian ("ita").
//   - HeuristicEngine: pure-Go edge-density localizer. It finds text-like
//     areas but does not read them, so every Word has empty Text.
//
// Open selects an engine by name ("tesseract" or "heuristic").
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-ita
//   - macOS: brew install tesseract tesseract-lang
//
// # Coordinates
//
// Boxes are in source-image pixel space relative to the image origin. A quad's
// corners are truncated toward zero; rotated quads become the box spanning
// their top-left and bottom-right corners, which may be inverted. Inverted or
// zero-area boxes are kept so that box ordinals stay stable.
package ocr
