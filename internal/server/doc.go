// Package server implements the MCP (Model Context Protocol) server for the
// image analyzer.
//
// This package provides a JSON-RPC 2.0 server that exposes the region
// classification pipeline through the MCP protocol: loading images, managing
// classification models, running analyses and moving result bundles to and
// from disk.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// While image_analyze runs, a notifications/message notification is sent
// after each image.
//
// # Available Tools
//
// Images:
//   - image_load: Add an image to the analysis list
//   - image_load_folder: Add every supported image of a folder
//   - images_list: List loaded images
//
// Models:
//   - model_list: List registered models and the one in use
//   - model_add: Register a custom ONNX model
//   - model_remove: Unregister a custom model
//   - model_set: Load a model for subsequent analyses
//
// Analysis:
//   - image_analyze: Detect and classify text regions
//   - result_get: Fetch a stored result and its report
//   - results_clear: Drop all results and loaded images
//
// Bundles:
//   - results_export: Write annotated images, reports and a manifest
//   - results_load: Replace results with an exported bundle
//
// Diagnostics:
//   - ocr_info: Describe the OCR backend
//
// # State
//
// The server holds one model session at a time. model_set swaps it only
// after the new model loaded successfully and then releases the old one.
// Images are cached by path for the lifetime of the process or until
// results_clear.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(server.Deps{Registry: reg, Analyzer: an, Store: store})
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
