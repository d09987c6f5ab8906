package server

import "github.com/ironsheep/image-annotator/internal/editor"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// commandProperties describes the Command fields an operation may read.
// Every tool shares them; each operation ignores the fields it does not use.
var commandProperties = map[string]interface{}{
	"x": map[string]interface{}{
		"type":        "number",
		"description": "Cursor X in image pixels",
	},
	"y": map[string]interface{}{
		"type":        "number",
		"description": "Cursor Y in image pixels",
	},
	"index": map[string]interface{}{
		"type":        "integer",
		"description": "Annotation index (select, delete, start-resize) or image index (goto)",
	},
	"mode": map[string]interface{}{
		"type":        "string",
		"enum":        []string{"plain", "toggle", "range"},
		"description": "Selection modifier",
	},
	"handle": map[string]interface{}{
		"type":        "string",
		"enum":        []string{"corner-tl", "corner-tr", "corner-bl", "corner-br", "edge-t", "edge-r", "edge-b", "edge-l"},
		"description": "Resize handle",
	},
	"class": map[string]interface{}{
		"type":        "integer",
		"description": "Class id, 1-based",
	},
	"key": map[string]interface{}{
		"type":        "integer",
		"description": "Number key 0-5 for the class picker",
	},
	"tool": map[string]interface{}{
		"type":        "string",
		"enum":        []string{"neutral", "point", "bbox", "rbbox", "polygon"},
		"description": "Drawing tool",
	},
	"rotation": map[string]interface{}{
		"type":        "number",
		"description": "Rotation in degrees for rotated boxes",
	},
	"view": map[string]interface{}{
		"type":        "object",
		"description": "Pan and zoom: {pan_x, pan_y, zoom}",
	},
	"format": map[string]interface{}{
		"type":        "string",
		"enum":        []string{"coco", "voc"},
		"description": "Export format; defaults to the configured one",
	},
	"path": map[string]interface{}{
		"type":        "string",
		"description": "Dataset to open, or export destination",
	},
}

// toolDefinitions exposes every editor operation as an MCP tool.
func toolDefinitions() []Tool {
	ops := editor.Ops()
	tools := make([]Tool, 0, len(ops))
	for _, op := range ops {
		tools = append(tools, Tool{
			Name:        string(op.Name),
			Description: op.Description,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": commandProperties,
			},
		})
	}
	return tools
}
