// Package results keeps the latest analysis result per image and moves result
// sets to and from bundle folders on disk.
//
// # Bundle Layout
//
// An exported bundle is a folder holding, for every stored image:
//
//	annotated_<name>      source image with labelled boxes
//	result_<name>.txt     plain-text report
//
// plus a single analysis_metadata.json manifest keyed by annotated filename:
//
//	{
//	  "annotated_scan.png": {
//	    "image_path": "/out/run1/annotated_scan.png",
//	    "text_path": "/out/run1/result_scan.png.txt",
//	    "original_path": "/data/scan.png",
//	    "model": "Default",
//	    "classes": ["a", "b"],
//	    "text": "CIAO",
//	    "predictions": [{"box": 1, "label": "a", "confidence": 0.91}],
//	    "bounding_boxes": [[[10, 40], [50, 60]]]
//	  }
//	}
package results

import (
	"sync"

	"github.com/ironsheep/image-analyzer/internal/analyzer"
)

// Store maps image paths to their most recent analysis result.
type Store struct {
	mu      sync.RWMutex
	results map[string]*analyzer.Result
	order   []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{results: make(map[string]*analyzer.Result)}
}

// Put records the result for path, replacing any earlier one. A replaced
// path keeps its original position.
func (s *Store) Put(path string, r *analyzer.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[path]; !ok {
		s.order = append(s.order, path)
	}
	s.results[path] = r
}

// Get returns the result stored for path.
func (s *Store) Get(path string) (*analyzer.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[path]
	return r, ok
}

// Paths lists stored image paths in the order they were first added.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns every stored result in Paths order.
func (s *Store) All() []*analyzer.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*analyzer.Result, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.results[p])
	}
	return out
}

// Len returns the number of stored results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Clear removes every result.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]*analyzer.Result)
	s.order = nil
}

// Replace swaps the store's contents for those of other.
func (s *Store) Replace(other *Store) {
	paths := other.Paths()
	all := other.All()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]*analyzer.Result, len(paths))
	s.order = paths
	for i, p := range paths {
		s.results[p] = all[i]
	}
}
