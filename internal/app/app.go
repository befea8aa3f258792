// Package app assembles the analysis pipeline from a configuration.
package app

import (
	"fmt"
	"log"

	"github.com/ironsheep/image-analyzer/internal/analyzer"
	"github.com/ironsheep/image-analyzer/internal/config"
	"github.com/ironsheep/image-analyzer/internal/imaging"
	"github.com/ironsheep/image-analyzer/internal/model"
	"github.com/ironsheep/image-analyzer/internal/ocr"
	"github.com/ironsheep/image-analyzer/internal/preprocess"
	"github.com/ironsheep/image-analyzer/internal/registry"
	"github.com/ironsheep/image-analyzer/internal/results"
	"github.com/ironsheep/image-analyzer/internal/segment"
	"github.com/ironsheep/image-analyzer/internal/server"
)

// App is a fully wired pipeline.
type App struct {
	Config    config.Config
	Style     imaging.Style
	Cache     *imaging.ImageCache
	Registry  *registry.Registry
	Engine    ocr.Engine
	Extractor *ocr.Extractor
	Analyzer  *analyzer.Analyzer
	Store     *results.Store
}

// Build wires every component described by cfg.
//
// A default model that cannot be registered is logged and leaves the
// registry without "Default"; user models stay available. An OCR engine or
// preprocessor that cannot be created fails the build.
func Build(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	style, err := cfg.Style()
	if err != nil {
		return nil, err
	}

	storeFile := cfg.Models.StoreFile
	if storeFile == "" {
		storeFile = registry.DefaultStorePath()
	}
	reg := registry.New(storeFile)
	if err := reg.LoadDefault(cfg.Models.DefaultPath, cfg.Models.ClassesFile); err != nil {
		log.Printf("Continuing without a default model")
	}

	pre, err := preprocess.NewContourPreprocessor(cfg.PreprocessOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create preprocessor: %w", err)
	}

	engine, err := ocr.Open(cfg.OCROptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}
	extractor := ocr.NewExtractor(engine, style)

	loader := model.ONNXLoader{
		LibraryPath: cfg.Runtime.LibraryPath,
		Threads:     cfg.Runtime.Threads,
	}

	a := &App{
		Config:    cfg,
		Style:     style,
		Cache:     imaging.NewImageCache(),
		Registry:  reg,
		Engine:    engine,
		Extractor: extractor,
		Analyzer:  analyzer.New(reg, extractor, pre, segment.NewOtsuSegmenter(), loader),
		Store:     results.NewStore(),
	}
	log.Printf("Pipeline ready: %d models, OCR engine %q", len(reg.Names()), cfg.OCR.Engine)
	return a, nil
}

// Server returns an MCP server over the app's components.
func (a *App) Server() *server.Server {
	return server.New(server.Deps{
		Cache:    a.Cache,
		Registry: a.Registry,
		Analyzer: a.Analyzer,
		Store:    a.Store,
		OCR:      a.Engine,
		Style:    a.Style,
	})
}

// Close releases the OCR engine.
func (a *App) Close() error {
	return a.Extractor.Close()
}
