package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": description,
		"default":     false,
	}
}

func stringListProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}

func schema(properties map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Images
		{
			Name:        "image_load",
			Description: "Load an image file into the analysis list and return its dimensions and format.",
			InputSchema: schema(map[string]interface{}{
				"path": stringProp("Absolute path to the image file"),
			}, "path"),
		},
		{
			Name:        "image_load_folder",
			Description: "Load every .png, .jpg, .jpeg and .bmp file of a folder into the analysis list.",
			InputSchema: schema(map[string]interface{}{
				"path": stringProp("Absolute path to the folder"),
			}, "path"),
		},
		{
			Name:        "images_list",
			Description: "List the loaded images and whether each has an analysis result.",
			InputSchema: schema(map[string]interface{}{}),
		},

		// Models
		{
			Name:        "model_list",
			Description: "List the registered classification models with their labels, and the model currently in use.",
			InputSchema: schema(map[string]interface{}{}),
		},
		{
			Name:        "model_add",
			Description: "Register a custom ONNX model. Labels are given directly or read from a classes JSON file under the model name.",
			InputSchema: schema(map[string]interface{}{
				"name":         stringProp("Name to register the model under. 'Default' is reserved."),
				"path":         stringProp("Absolute path to the .onnx model file"),
				"labels":       stringListProp("Class labels in model output order"),
				"classes_file": stringProp("JSON file mapping model names to label lists, used when labels is empty"),
			}, "name", "path"),
		},
		{
			Name:        "model_remove",
			Description: "Unregister a custom model. The Default model cannot be removed.",
			InputSchema: schema(map[string]interface{}{
				"name": stringProp("Registered model name"),
			}, "name"),
		},
		{
			Name:        "model_set",
			Description: "Load a registered model and use it for subsequent analyses.",
			InputSchema: schema(map[string]interface{}{
				"name": stringProp("Registered model name"),
			}, "name"),
		},

		// Analysis
		{
			Name:        "image_analyze",
			Description: "Detect text regions with OCR and classify each region with the current model. Analyzes the given paths, or every loaded image when none are given.",
			InputSchema: schema(map[string]interface{}{
				"paths":         stringListProp("Image paths to analyze. Paths not yet loaded are loaded first."),
				"include_image": boolProp("Include the annotated image as base64-encoded PNG"),
			}),
		},
		{
			Name:        "result_get",
			Description: "Return the stored analysis result and text report for an image.",
			InputSchema: schema(map[string]interface{}{
				"path":          stringProp("Image path the result was stored under"),
				"include_image": boolProp("Include the annotated image as base64-encoded PNG"),
			}, "path"),
		},
		{
			Name:        "results_clear",
			Description: "Clear all results and the list of loaded images.",
			InputSchema: schema(map[string]interface{}{}),
		},

		// Bundles
		{
			Name:        "results_export",
			Description: "Save annotated images, text reports and an analysis_metadata.json manifest to a new folder.",
			InputSchema: schema(map[string]interface{}{
				"dir":       stringProp("Parent directory of the bundle folder"),
				"name":      stringProp("Bundle folder name"),
				"overwrite": boolProp("Write into the folder even if it already exists"),
			}, "dir", "name"),
		},
		{
			Name:        "results_load",
			Description: "Replace all results with those of a previously exported bundle folder.",
			InputSchema: schema(map[string]interface{}{
				"path": stringProp("Absolute path to the bundle folder"),
			}, "path"),
		},

		// Diagnostics
		{
			Name:        "ocr_info",
			Description: "Report the OCR backend in use and whether it is available.",
			InputSchema: schema(map[string]interface{}{}),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
