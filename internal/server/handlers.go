package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"

	"github.com/ironsheep/image-analyzer/internal/analyzer"
	"github.com/ironsheep/image-analyzer/internal/imaging"
	"github.com/ironsheep/image-analyzer/internal/ocr"
	"github.com/ironsheep/image-analyzer/internal/results"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Images
	case "image_load":
		return s.handleImageLoad(args)
	case "image_load_folder":
		return s.handleImageLoadFolder(args)
	case "images_list":
		return s.handleImagesList()

	// Models
	case "model_list":
		return s.handleModelList()
	case "model_add":
		return s.handleModelAdd(args)
	case "model_remove":
		return s.handleModelRemove(args)
	case "model_set":
		return s.handleModelSet(args)

	// Analysis
	case "image_analyze":
		return s.handleImageAnalyze(args)
	case "result_get":
		return s.handleResultGet(args)
	case "results_clear":
		return s.handleResultsClear()

	// Bundles
	case "results_export":
		return s.handleResultsExport(args)
	case "results_load":
		return s.handleResultsLoad(args)

	// Diagnostics
	case "ocr_info":
		return s.handleOCRInfo()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments leave v unchanged.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

// encodePNG returns img as base64-encoded PNG.
func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// currentSession returns the model session in use, or nil.
func (s *Server) currentSession() *analyzer.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// addImage appends path to the analysis list unless it is already there.
func (s *Server) addImage(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.images {
		if p == path {
			return
		}
	}
	s.images = append(s.images, path)
}

func (s *Server) loadedImages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.images))
	copy(out, s.images)
	return out
}

// === Image Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	info, err := imaging.LoadImageInfo(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	s.addImage(a.Path)
	return info, nil
}

type fileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func (s *Server) handleImageLoadFolder(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	paths, err := imaging.ListImages(a.Path)
	if err != nil {
		return nil, err
	}

	loaded := make([]*imaging.ImageInfo, 0, len(paths))
	failed := []fileError{}
	for _, p := range paths {
		info, err := imaging.LoadImageInfo(s.cache, p)
		if err != nil {
			log.Printf("Skipping %s: %v", p, err)
			failed = append(failed, fileError{Path: p, Error: err.Error()})
			continue
		}
		s.addImage(p)
		loaded = append(loaded, info)
	}

	return map[string]interface{}{
		"loaded": loaded,
		"errors": failed,
	}, nil
}

type imageEntry struct {
	Path     string `json:"path"`
	Analyzed bool   `json:"analyzed"`
}

func (s *Server) handleImagesList() (interface{}, error) {
	paths := s.loadedImages()
	entries := make([]imageEntry, len(paths))
	for i, p := range paths {
		_, analyzed := s.store.Get(p)
		entries[i] = imageEntry{Path: p, Analyzed: analyzed}
	}
	return map[string]interface{}{"images": entries}, nil
}

// === Model Handlers ===

type modelNameArgs struct {
	Name string `json:"name"`
}

func (s *Server) handleModelList() (interface{}, error) {
	current := ""
	if sess := s.currentSession(); sess != nil {
		current = sess.Name()
	}
	return map[string]interface{}{
		"models":  s.registry.List(),
		"current": current,
	}, nil
}

type modelAddArgs struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Labels      []string `json:"labels"`
	ClassesFile string   `json:"classes_file"`
}

func (s *Server) handleModelAdd(args json.RawMessage) (interface{}, error) {
	var a modelAddArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	var err error
	if len(a.Labels) == 0 && a.ClassesFile != "" {
		err = s.registry.AddFromClassesFile(a.Name, a.Path, a.ClassesFile)
	} else {
		err = s.registry.Add(a.Name, a.Path, a.Labels)
	}
	if err != nil {
		return nil, err
	}

	d, _ := s.registry.Get(a.Name)
	return d, nil
}

func (s *Server) handleModelRemove(args json.RawMessage) (interface{}, error) {
	var a modelNameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.registry.Remove(a.Name); err != nil {
		return nil, err
	}

	// A session of the removed model is released; analyses then need model_set.
	s.mu.Lock()
	var old *analyzer.Session
	if s.session != nil && s.session.Name() == a.Name {
		old, s.session = s.session, nil
	}
	s.mu.Unlock()
	if err := old.Close(); err != nil {
		log.Printf("Error releasing model %q: %v", a.Name, err)
	}

	return map[string]interface{}{"removed": a.Name}, nil
}

func (s *Server) handleModelSet(args json.RawMessage) (interface{}, error) {
	var a modelNameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.analyzer == nil {
		return nil, errors.New("analyzer is not configured")
	}

	sess, err := s.analyzer.SetModel(a.Name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	old := s.session
	s.session = sess
	s.mu.Unlock()
	if err := old.Close(); err != nil {
		log.Printf("Error releasing model %q: %v", old.Name(), err)
	}

	return map[string]interface{}{
		"model":  sess.Name(),
		"path":   sess.Path(),
		"labels": sess.Labels(),
	}, nil
}

// === Analysis Handlers ===

// resultView is a stored result as returned by tools.
type resultView struct {
	*analyzer.Result
	Report       string `json:"report"`
	AnnotatedPNG string `json:"annotated_png,omitempty"`
}

func newResultView(r *analyzer.Result, includeImage bool) (*resultView, error) {
	v := &resultView{Result: r, Report: results.Report(r)}
	if includeImage && r.Annotated != nil {
		encoded, err := encodePNG(r.Annotated)
		if err != nil {
			return nil, err
		}
		v.AnnotatedPNG = encoded
	}
	return v, nil
}

type imageAnalyzeArgs struct {
	Paths        []string `json:"paths"`
	IncludeImage bool     `json:"include_image"`
}

type analyzeItem struct {
	Path   string      `json:"path"`
	Result *resultView `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (s *Server) handleImageAnalyze(args json.RawMessage) (interface{}, error) {
	var a imageAnalyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.analyzer == nil {
		return nil, errors.New("analyzer is not configured")
	}
	sess := s.currentSession()
	if sess == nil {
		return nil, analyzer.ErrNotReady
	}

	paths := a.Paths
	if len(paths) == 0 {
		paths = s.loadedImages()
	}
	if len(paths) == 0 {
		return nil, errors.New("no images loaded")
	}

	var items []analyzeItem
	images := make([]*imaging.Image, 0, len(paths))
	for _, p := range paths {
		img, err := s.cache.Load(p)
		if err != nil {
			items = append(items, analyzeItem{Path: p, Error: err.Error()})
			continue
		}
		s.addImage(p)
		images = append(images, img)
	}

	batch, err := s.analyzer.Batch(sess, images, func(done, total int, item analyzer.BatchItem) {
		s.notify("info", fmt.Sprintf("Analyzed %d/%d: %s", done, total, item.Path))
	})
	if err != nil {
		return nil, err
	}

	analyzed := 0
	for _, b := range batch {
		if b.Err != nil {
			log.Printf("Error analyzing %s: %v", b.Path, b.Err)
			items = append(items, analyzeItem{Path: b.Path, Error: b.Err.Error()})
			continue
		}
		s.store.Put(b.Path, b.Result)
		view, err := newResultView(b.Result, a.IncludeImage)
		if err != nil {
			return nil, err
		}
		items = append(items, analyzeItem{Path: b.Path, Result: view})
		analyzed++
	}

	return map[string]interface{}{
		"model":    sess.Name(),
		"analyzed": analyzed,
		"failed":   len(items) - analyzed,
		"items":    items,
	}, nil
}

type resultGetArgs struct {
	Path         string `json:"path"`
	IncludeImage bool   `json:"include_image"`
}

func (s *Server) handleResultGet(args json.RawMessage) (interface{}, error) {
	var a resultGetArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	r, ok := s.store.Get(a.Path)
	if !ok {
		return nil, fmt.Errorf("no result for %s", a.Path)
	}
	return newResultView(r, a.IncludeImage)
}

func (s *Server) handleResultsClear() (interface{}, error) {
	cleared := s.store.Len()
	s.store.Clear()
	s.cache.Clear()

	s.mu.Lock()
	s.images = nil
	s.mu.Unlock()

	return map[string]interface{}{"cleared": cleared}, nil
}

// === Bundle Handlers ===

type resultsExportArgs struct {
	Dir       string `json:"dir"`
	Name      string `json:"name"`
	Overwrite bool   `json:"overwrite"`
}

func (s *Server) handleResultsExport(args json.RawMessage) (interface{}, error) {
	var a resultsExportArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	folder, err := s.store.Export(a.Dir, a.Name, results.ExportOptions{
		Overwrite: a.Overwrite,
		Style:     s.style,
		Images:    s.cache,
	})
	if err != nil {
		return nil, err
	}

	manifest, err := results.ReadManifest(folder)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"folder":   folder,
		"exported": len(manifest),
	}, nil
}

func (s *Server) handleResultsLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	loaded, err := results.Load(a.Path)
	if err != nil {
		return nil, err
	}

	s.store.Replace(loaded)
	paths := loaded.Paths()
	s.mu.Lock()
	s.images = paths
	s.mu.Unlock()

	return map[string]interface{}{
		"loaded": len(paths),
		"images": paths,
	}, nil
}

// === Diagnostics ===

func (s *Server) handleOCRInfo() (interface{}, error) {
	switch e := s.ocr.(type) {
	case nil:
		return ocr.Info{Error: "no OCR engine configured"}, nil
	case ocr.Describer:
		return e.Info(), nil
	default:
		return ocr.Info{Available: true, Backend: fmt.Sprintf("%T", e)}, nil
	}
}
