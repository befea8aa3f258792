// Package config loads the analyzer configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-analyzer/internal/imaging"
	"github.com/ironsheep/image-analyzer/internal/ocr"
	"github.com/ironsheep/image-analyzer/internal/preprocess"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "IMAGE_ANALYZER_CONFIG"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Models     Models     `yaml:"models"`
	OCR        OCR        `yaml:"ocr"`
	Preprocess Preprocess `yaml:"preprocess"`
	Runtime    Runtime    `yaml:"runtime"`
	Render     Render     `yaml:"render"`
}

type Models struct {
	DefaultPath string `yaml:"default_path"`
	ClassesFile string `yaml:"classes_file"`
	StoreFile   string `yaml:"store_file"` // "" uses the per-user store
}

type OCR struct {
	Engine         string  `yaml:"engine"`
	Language       string  `yaml:"language"`
	TessdataPrefix string  `yaml:"tessdata_prefix"`
	MinConfidence  float64 `yaml:"min_confidence"`
}

type Preprocess struct {
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	ClipLimit       float64 `yaml:"clip_limit"`
	TileGrid        int     `yaml:"tile_grid"`
	DenoiseStrength float64 `yaml:"denoise_strength"`
	CannyLow        float64 `yaml:"canny_low"`
	CannyHigh       float64 `yaml:"canny_high"`
}

type Runtime struct {
	LibraryPath string `yaml:"library_path"` // onnxruntime shared library
	Threads     int    `yaml:"threads"`
}

type Render struct {
	BoxColor   string `yaml:"box_color"`
	LabelColor string `yaml:"label_color"`
	Thickness  int    `yaml:"thickness"`
}

// Default returns the built-in configuration.
func Default() Config {
	pre := preprocess.DefaultOptions()
	return Config{
		Models: Models{
			DefaultPath: "Models/Default.onnx",
			ClassesFile: "class_names.json",
		},
		OCR: OCR{
			Engine:   ocr.EngineTesseract,
			Language: ocr.DefaultLanguage,
		},
		Preprocess: Preprocess{
			Width:           pre.Width,
			Height:          pre.Height,
			ClipLimit:       pre.ClipLimit,
			TileGrid:        pre.TileGrid,
			DenoiseStrength: pre.DenoiseStrength,
			CannyLow:        pre.CannyLow,
			CannyHigh:       pre.CannyHigh,
		},
		Runtime: Runtime{Threads: 1},
		Render: Render{
			BoxColor:   "#00ff00",
			LabelColor: "#0000ff",
			Thickness:  2,
		},
	}
}

// Path returns flagValue when set and the IMAGE_ANALYZER_CONFIG value otherwise.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvPath)
}

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file yields the defaults. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Write saves cfg as YAML.
func Write(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Encode writes cfg as YAML to w.
func Encode(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// Validate checks values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Models.DefaultPath == "" {
		return fmt.Errorf("%w: models.default_path is empty", ErrInvalid)
	}
	switch c.OCR.Engine {
	case "", ocr.EngineTesseract, ocr.EngineHeuristic:
	default:
		return fmt.Errorf("%w: unknown ocr.engine %q", ErrInvalid, c.OCR.Engine)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		return fmt.Errorf("%w: ocr.min_confidence %g is outside [0, 1]", ErrInvalid, c.OCR.MinConfidence)
	}
	if err := c.PreprocessOptions().Validate(); err != nil {
		return fmt.Errorf("%w: preprocess: %w", ErrInvalid, err)
	}
	if c.Runtime.Threads < 0 {
		return fmt.Errorf("%w: runtime.threads %d is negative", ErrInvalid, c.Runtime.Threads)
	}
	if _, err := c.Style(); err != nil {
		return fmt.Errorf("%w: render: %w", ErrInvalid, err)
	}
	return nil
}

// PreprocessOptions converts the preprocess section. Settings the file does
// not expose keep their defaults.
func (c Config) PreprocessOptions() preprocess.Options {
	opts := preprocess.DefaultOptions()
	opts.Width = c.Preprocess.Width
	opts.Height = c.Preprocess.Height
	opts.ClipLimit = c.Preprocess.ClipLimit
	opts.TileGrid = c.Preprocess.TileGrid
	opts.DenoiseStrength = c.Preprocess.DenoiseStrength
	opts.CannyLow = c.Preprocess.CannyLow
	opts.CannyHigh = c.Preprocess.CannyHigh
	return opts
}

// OCROptions converts the ocr section.
func (c Config) OCROptions() ocr.Options {
	return ocr.Options{
		Engine:         c.OCR.Engine,
		Language:       c.OCR.Language,
		TessdataPrefix: c.OCR.TessdataPrefix,
		MinConfidence:  c.OCR.MinConfidence,
	}
}

// Style converts the render section.
func (c Config) Style() (imaging.Style, error) {
	return imaging.ParseStyle(c.Render.BoxColor, c.Render.LabelColor, c.Render.Thickness)
}
