// Package registry keeps the named classification models available to the analyzer.
//
// Every registry has at most one built-in model named "Default", configured at
// startup and never persisted. User models are added and removed at runtime and
// saved to a JSON file after every change, so they survive restarts.
//
// # Store File Format
//
//	{
//	  "digits": {"path": "/models/digits.onnx", "labels": ["0", "1", "2"]},
//	  "shapes": {"path": "/models/shapes.onnx", "labels": ["circle", "square"]}
//	}
//
// Label i names model output class i. Files written by older versions use the
// key "classes" instead of "labels"; both are accepted on read.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DefaultName is the reserved name of the built-in model.
const DefaultName = "Default"

// DefaultClassesKey is the classes-file key holding the built-in model's labels.
const DefaultClassesKey = "default"

var (
	// ErrConfiguration marks startup configuration problems such as a missing
	// default model or an unreadable classes file.
	ErrConfiguration = errors.New("configuration error")

	// ErrModelFileMissing is returned when a model path does not exist.
	ErrModelFileMissing = errors.New("model file not found")

	// ErrReservedName is returned when adding or removing the built-in model.
	ErrReservedName = errors.New("model name is reserved")

	// ErrNotFound is returned for names that are not registered.
	ErrNotFound = errors.New("model not found")

	// ErrNoLabels is returned when a model is added without labels.
	ErrNoLabels = errors.New("model has no labels")

	// ErrInvalidName is returned for empty model names.
	ErrInvalidName = errors.New("invalid model name")
)

// Descriptor names a model file and its class labels.
type Descriptor struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Labels []string `json:"labels"`
}

// Registry is a thread-safe set of model descriptors.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]Descriptor
	order     []string // user models in registration order
	storeFile string
}

// New creates a registry backed by storeFile and loads the user models saved
// there. An empty storeFile keeps the registry in memory only. A missing or
// unreadable store file is logged and leaves the registry empty.
func New(storeFile string) *Registry {
	r := &Registry{
		models:    make(map[string]Descriptor),
		storeFile: storeFile,
	}
	if storeFile != "" {
		r.loadStore()
	}
	return r
}

// DefaultStorePath returns ~/.image_analysis_app/custom_models.json, or
// custom_models.json in the working directory when the home directory cannot
// be determined or created.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err == nil {
		dir := filepath.Join(home, ".image_analysis_app")
		if err = os.MkdirAll(dir, 0755); err == nil {
			return filepath.Join(dir, "custom_models.json")
		}
	}
	log.Printf("Error creating app data directory: %v", err)
	return "custom_models.json"
}

// StoreFile returns the path user models are persisted to.
func (r *Registry) StoreFile() string { return r.storeFile }

// LoadDefault registers the built-in model using the labels stored under the
// "default" key of classesFile.
//
// Failures are logged and returned wrapped in ErrConfiguration; the registry
// stays usable without a default model.
func (r *Registry) LoadDefault(modelPath, classesFile string) error {
	err := r.loadDefault(modelPath, classesFile)
	if err != nil {
		log.Printf("Error loading default model: %v", err)
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	log.Printf("Default model loaded from %s", modelPath)
	return nil
}

func (r *Registry) loadDefault(modelPath, classesFile string) error {
	if err := checkModelFile(modelPath); err != nil {
		return err
	}

	classes, err := ReadClasses(classesFile)
	if err != nil {
		return err
	}
	labels, ok := classes[DefaultClassesKey]
	if !ok || len(labels) == 0 {
		return fmt.Errorf("classes file %s has no %q labels", classesFile, DefaultClassesKey)
	}

	r.mu.Lock()
	r.models[DefaultName] = Descriptor{Name: DefaultName, Path: modelPath, Labels: copyLabels(labels)}
	r.mu.Unlock()
	return nil
}

// Add registers a user model and persists the user models.
//
// The name "Default" is rejected with ErrReservedName, a missing model file
// with ErrModelFileMissing and empty labels with ErrNoLabels; none of these
// change the registry. Adding an existing user name replaces its descriptor
// but keeps its position.
func (r *Registry) Add(name, modelPath string, labels []string) error {
	switch {
	case name == "":
		return ErrInvalidName
	case name == DefaultName:
		return fmt.Errorf("cannot add model %q: %w", name, ErrReservedName)
	case len(labels) == 0:
		return fmt.Errorf("cannot add model %q: %w", name, ErrNoLabels)
	}
	if err := checkModelFile(modelPath); err != nil {
		return fmt.Errorf("cannot add model %q: %w", name, err)
	}

	r.mu.Lock()
	if _, exists := r.models[name]; !exists {
		r.order = append(r.order, name)
	}
	r.models[name] = Descriptor{Name: name, Path: modelPath, Labels: copyLabels(labels)}
	r.mu.Unlock()

	log.Printf("Model %q added", name)
	r.persist()
	return nil
}

// AddFromClassesFile adds a user model whose labels are stored under name in
// classesFile.
func (r *Registry) AddFromClassesFile(name, modelPath, classesFile string) error {
	classes, err := ReadClasses(classesFile)
	if err != nil {
		return err
	}
	labels, ok := classes[name]
	if !ok {
		return fmt.Errorf("classes file %s has no labels for %q: %w", classesFile, name, ErrNoLabels)
	}
	return r.Add(name, modelPath, labels)
}

// Remove unregisters a user model and persists the remaining user models.
//
// The built-in model cannot be removed (ErrReservedName) and unknown names
// return ErrNotFound. Neither case changes the registry.
func (r *Registry) Remove(name string) error {
	if name == DefaultName {
		return fmt.Errorf("cannot remove model %q: %w", name, ErrReservedName)
	}

	r.mu.Lock()
	if _, ok := r.models[name]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("cannot remove model %q: %w", name, ErrNotFound)
	}
	delete(r.models, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	log.Printf("Model %q removed", name)
	r.persist()
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.models[name]
	if !ok {
		return Descriptor{}, false
	}
	d.Labels = copyLabels(d.Labels)
	return d, true
}

// Names lists registered models: "Default" first when present, then user
// models in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order)+1)
	if _, ok := r.models[DefaultName]; ok {
		names = append(names, DefaultName)
	}
	return append(names, r.order...)
}

// List returns every descriptor in Names order.
func (r *Registry) List() []Descriptor {
	names := r.Names()
	out := make([]Descriptor, 0, len(names))
	for _, n := range names {
		if d, ok := r.Get(n); ok {
			out = append(out, d)
		}
	}
	return out
}

// Save writes the user models to the store file. The built-in model is never
// written. Save is a no-op for in-memory registries.
func (r *Registry) Save() error {
	if r.storeFile == "" {
		return nil
	}

	r.mu.RLock()
	entries := make(map[string]storeEntry, len(r.order))
	for _, name := range r.order {
		d := r.models[name]
		entries[name] = storeEntry{Path: d.Path, Labels: d.Labels}
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode models: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.storeFile), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp := r.storeFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write models: %w", err)
	}
	if err := os.Rename(tmp, r.storeFile); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write models: %w", err)
	}
	return nil
}

// persist saves and logs failures; callers have already committed the change.
func (r *Registry) persist() {
	if err := r.Save(); err != nil {
		log.Printf("Error saving custom models: %v", err)
	}
}

// storeEntry is one user model in the store file.
type storeEntry struct {
	Path    string   `json:"path"`
	Labels  []string `json:"labels"`
	Classes []string `json:"classes,omitempty"`
}

func (r *Registry) loadStore() {
	data, err := os.ReadFile(r.storeFile)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		log.Printf("Error loading custom models: %v", err)
		return
	}

	var entries map[string]storeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("Error loading custom models from %s: %v", r.storeFile, err)
		return
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if name == DefaultName || name == "" {
			continue
		}
		e := entries[name]
		labels := e.Labels
		if len(labels) == 0 {
			labels = e.Classes
		}
		r.models[name] = Descriptor{Name: name, Path: e.Path, Labels: labels}
		r.order = append(r.order, name)
	}
	log.Printf("Loaded %d custom models from %s", len(r.order), r.storeFile)
}

// ReadClasses reads a classes file mapping model names to label lists.
func ReadClasses(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classes file: %w", err)
	}
	var classes map[string][]string
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, fmt.Errorf("failed to parse classes file %s: %w", path, err)
	}
	return classes, nil
}

func checkModelFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrModelFileMissing, path)
		}
		return fmt.Errorf("failed to check model file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrModelFileMissing, path)
	}
	return nil
}

func copyLabels(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}
