package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"

	"github.com/ironsheep/image-analyzer/internal/analyzer"
	"github.com/ironsheep/image-analyzer/internal/imaging"
)

// ManifestFile is the name of the bundle manifest.
const ManifestFile = "analysis_metadata.json"

var (
	// ErrNoResults is returned when exporting an empty store.
	ErrNoResults = errors.New("there are no results to export")

	// ErrBundleExists is returned when the bundle folder already exists and
	// overwriting was not requested.
	ErrBundleExists = errors.New("results folder already exists")

	// ErrNoManifest is returned when a folder has no manifest.
	ErrNoManifest = errors.New("invalid results folder: metadata file not found")
)

// ImageSource loads source images by path. *imaging.ImageCache implements it.
type ImageSource interface {
	Load(path string) (*imaging.Image, error)
}

// ExportOptions control Export.
type ExportOptions struct {
	// Overwrite allows writing into an existing bundle folder.
	Overwrite bool

	// Style is used to draw the annotated images. The zero Style means
	// imaging.DefaultStyle.
	Style imaging.Style

	// Images supplies the source images. Nil reads them from disk.
	Images ImageSource

	// JPEGQuality is used for .jpg and .jpeg outputs. Zero means 95.
	JPEGQuality int
}

// Entry is one image of a bundle manifest.
type Entry struct {
	ImagePath    string                `json:"image_path"`
	TextPath     string                `json:"text_path"`
	OriginalPath string                `json:"original_path"`
	Model        string                `json:"model"`
	Classes      []string              `json:"classes"`
	Text         string                `json:"text,omitempty"`
	Predictions  []analyzer.Prediction `json:"predictions"`
	Boxes        []imaging.BoundingBox `json:"bounding_boxes"`
}

// Manifest maps annotated filenames to their entries.
type Manifest map[string]Entry

// Export writes every stored result to the folder dir/name and returns the
// folder path.
//
// Results whose source image cannot be loaded are logged and left out of the
// bundle. Source images sharing a base name get a numeric suffix.
func (s *Store) Export(dir, name string, opts ExportOptions) (string, error) {
	all := s.All()
	if len(all) == 0 {
		return "", ErrNoResults
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid results folder name %q", name)
	}

	folder := filepath.Join(dir, name)
	if _, err := os.Stat(folder); err == nil && !opts.Overwrite {
		return "", fmt.Errorf("%w: %s", ErrBundleExists, folder)
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("failed to create results folder: %w", err)
	}

	if opts.Style == (imaging.Style{}) {
		opts.Style = imaging.DefaultStyle()
	}

	manifest := make(Manifest, len(all))
	for _, r := range all {
		src, err := loadSource(opts.Images, r.ImagePath)
		if err != nil {
			log.Printf("Skipping %s: %v", r.ImagePath, err)
			continue
		}

		base := uniqueBase(manifest, filepath.Base(r.ImagePath))
		entry, err := writeEntry(folder, base, src, r, opts)
		if err != nil {
			return "", err
		}
		manifest["annotated_"+base] = entry
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, ManifestFile), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	log.Printf("Results saved to %s", folder)
	return folder, nil
}

func writeEntry(folder, base string, src image.Image, r *analyzer.Result, opts ExportOptions) (Entry, error) {
	imagePath := filepath.Join(folder, "annotated_"+base)
	annotated := imaging.RenderPredictions(src, r.Boxes, r.Captions(), opts.Style)
	if err := imgio.Save(imagePath, annotated, encoderFor(base, opts.JPEGQuality)); err != nil {
		return Entry{}, fmt.Errorf("failed to save annotated image: %w", err)
	}

	textPath := filepath.Join(folder, "result_"+base+".txt")
	if err := os.WriteFile(textPath, []byte(Report(r)), 0644); err != nil {
		return Entry{}, fmt.Errorf("failed to save result text: %w", err)
	}

	return Entry{
		ImagePath:    imagePath,
		TextPath:     textPath,
		OriginalPath: r.ImagePath,
		Model:        r.Model,
		Classes:      r.Labels,
		Text:         r.Text,
		Predictions:  r.Predictions,
		Boxes:        r.Boxes,
	}, nil
}

// Load reads the bundle in dir into a new store.
func Load(dir string) (*Store, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(manifest))
	for k := range manifest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := NewStore()
	for _, k := range keys {
		e := manifest[k]
		r := &analyzer.Result{
			ImagePath:   e.OriginalPath,
			Model:       e.Model,
			Labels:      e.Classes,
			Text:        e.Text,
			Predictions: ordinals(e.Predictions),
			Boxes:       e.Boxes,
		}

		// The manifest's image_path may point at the folder the bundle was
		// exported to, so the annotated file is looked up next to the manifest.
		annotated := filepath.Join(dir, filepath.Base(e.ImagePath))
		if img, err := imaging.Open(annotated); err == nil {
			r.Annotated = clone.AsRGBA(img.Image)
		} else {
			log.Printf("Error loading annotated image %s: %v", annotated, err)
		}

		s.Put(r.ImagePath, r)
	}

	log.Printf("Loaded %d results from %s", s.Len(), dir)
	return s, nil
}

// ReadManifest decodes the manifest of the bundle in dir.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoManifest, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	return m, nil
}

// ordinals fills in box ordinals for manifests written without them, where
// prediction i belongs to box i+1.
func ordinals(preds []analyzer.Prediction) []analyzer.Prediction {
	for i := range preds {
		if preds[i].Box == 0 {
			preds[i].Box = i + 1
		}
	}
	return preds
}

func loadSource(src ImageSource, path string) (image.Image, error) {
	if src != nil {
		img, err := src.Load(path)
		if err != nil {
			return nil, err
		}
		return img.Image, nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	return img.Image, nil
}

func uniqueBase(m Manifest, base string) string {
	if _, taken := m["annotated_"+base]; !taken {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if _, taken := m["annotated_"+candidate]; !taken {
			return candidate
		}
	}
}

func encoderFor(name string, quality int) imgio.Encoder {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		if quality <= 0 {
			quality = 95
		}
		return imgio.JPEGEncoder(quality)
	case ".bmp":
		return imgio.BMPEncoder()
	default:
		return imgio.PNGEncoder()
	}
}
