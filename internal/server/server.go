package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ironsheep/image-analyzer/internal/analyzer"
	"github.com/ironsheep/image-analyzer/internal/imaging"
	"github.com/ironsheep/image-analyzer/internal/ocr"
	"github.com/ironsheep/image-analyzer/internal/registry"
	"github.com/ironsheep/image-analyzer/internal/results"
)

// Version is reported in the initialize handshake.
var Version = "0.1.0"

// Deps are the components the server exposes as tools.
type Deps struct {
	Cache    *imaging.ImageCache
	Registry *registry.Registry
	Analyzer *analyzer.Analyzer
	Store    *results.Store

	// OCR is reported by ocr_info when it implements ocr.Describer.
	OCR ocr.Engine

	// Style draws annotated images returned by tools and written to bundles.
	Style imaging.Style
}

// Server handles MCP protocol communication
type Server struct {
	cache    *imaging.ImageCache
	registry *registry.Registry
	analyzer *analyzer.Analyzer
	store    *results.Store
	ocr      ocr.Engine
	style    imaging.Style

	mu      sync.Mutex
	session *analyzer.Session
	images  []string // loaded image paths in load order

	outMu   sync.Mutex
	encoder *json.Encoder
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a new MCP server instance. Nil cache and store are replaced by
// empty ones; a nil registry is an in-memory registry.
func New(deps Deps) *Server {
	s := &Server{
		cache:    deps.Cache,
		registry: deps.Registry,
		analyzer: deps.Analyzer,
		store:    deps.Store,
		ocr:      deps.OCR,
		style:    deps.Style,
	}
	if s.cache == nil {
		s.cache = imaging.NewImageCache()
	}
	if s.registry == nil {
		s.registry = registry.New("")
	}
	if s.store == nil {
		s.store = results.NewStore()
	}
	if s.style == (imaging.Style{}) {
		s.style = imaging.DefaultStyle()
	}
	return s
}

// Run serves MCP on stdin and stdout until stdin is closed.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to w.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	s.outMu.Lock()
	s.encoder = json.NewEncoder(w)
	s.outMu.Unlock()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("Failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// write encodes one message to the client.
func (s *Server) write(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.encoder == nil {
		return
	}
	if err := s.encoder.Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// notify sends a logging notification to the client. It is a no-op outside Serve.
func (s *Server) notify(level, message string) {
	s.write(MCPNotification{
		JSONRPC: "2.0",
		Method:  "notifications/message",
		Params: map[string]interface{}{
			"level":  level,
			"logger": "image-analyzer",
			"data":   message,
		},
	})
}

// Close releases the current model session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.session.Close()
	s.session = nil
	return err
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "image-analyzer",
				"version": Version,
			},
		},
	}
}
