package server

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/image-annotator/internal/dataset"
	"github.com/ironsheep/image-annotator/internal/editor"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the editor operation to run (e.g., "finish-draw", "next").
	Name string `json:"name"`

	// Arguments holds the remaining Command fields.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

type thumbnailParams struct {
	ID      int `json:"id"`
	MaxSide int `json:"max_side"`
}

type openParams struct {
	Path string `json:"path"`
}

// handleCommandsCall decodes a Command from params and applies it. The raw
// editor Result is returned.
func (s *Server) handleCommandsCall(req *MCPRequest) *MCPResponse {
	var cmd editor.Command
	if err := decodeParams(req.Params, &cmd); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	res, err := s.ed.Apply(cmd)
	if err != nil {
		return s.commandError(req.ID, cmd.Op, err)
	}
	return result(req.ID, res)
}

// handleToolsCall runs an editor operation through MCP's tool interface.
//
// The response wraps the editor Result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	var cmd editor.Command
	if err := decodeParams(params.Arguments, &cmd); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	cmd.Op = editor.Op(params.Name)

	res, err := s.ed.Apply(cmd)
	if err != nil {
		return s.commandError(req.ID, cmd.Op, err)
	}
	return result(req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": mustMarshalJSON(res)},
		},
	})
}

func (s *Server) handleThumbnail(req *MCPRequest) *MCPResponse {
	var params thumbnailParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	thumb, err := s.ed.Thumbnail(params.ID, params.MaxSide)
	if err != nil {
		return s.commandError(req.ID, "thumbnail", err)
	}
	return result(req.ID, thumb)
}

func (s *Server) handleOpen(req *MCPRequest) *MCPResponse {
	var params openParams
	if err := decodeParams(req.Params, &params); err != nil || params.Path == "" {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", "path is required")
	}
	res, err := s.ed.Open(params.Path)
	if err != nil {
		return s.commandError(req.ID, editor.OpOpen, err)
	}
	return result(req.ID, res)
}

func (s *Server) handleEdges(req *MCPRequest) *MCPResponse {
	edges, err := s.ed.EdgePreview()
	if err != nil {
		return s.commandError(req.ID, "edges", err)
	}
	return result(req.ID, edges)
}

// commandError maps editor errors to JSON-RPC codes: malformed or unknown
// commands are invalid params, everything else is a command failure.
func (s *Server) commandError(id interface{}, op editor.Op, err error) *MCPResponse {
	s.log.WithError(err).WithField("op", op).Warn("command failed")
	switch {
	case errors.Is(err, editor.ErrInvalidCommand), errors.Is(err, editor.ErrUnknownOp):
		return errorResponse(id, CodeInvalidParams, "Invalid command", err.Error())
	case errors.Is(err, dataset.ErrNoDataset):
		return errorResponse(id, CodeCommandFailed, "No dataset open", err.Error())
	default:
		return errorResponse(id, CodeCommandFailed, "Command failed", err.Error())
	}
}

// decodeParams unmarshals params into v. Absent params leave v at its zero
// value.
func decodeParams(params jsoniter.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, v)
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
