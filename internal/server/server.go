package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-annotator/internal/editor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProtocolVersion is the MCP revision reported by initialize.
const ProtocolVersion = "2024-11-05"

// maxLineSize bounds one request line.
const maxLineSize = 1024 * 1024

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeCommandFailed  = -32000
)

// Server handles MCP protocol communication for one editor.
type Server struct {
	ed      *editor.Editor
	log     *logrus.Entry
	version string

	mu  sync.Mutex
	enc *jsoniter.Encoder
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      interface{}         `json:"id"`
	Method  string              `json:"method"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
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

// New creates a server for ed. A nil logger uses the logrus standard logger.
func New(ed *editor.Editor, logger *logrus.Logger, version string) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		ed:      ed,
		log:     logger.WithField("component", "server"),
		version: version,
	}
}

// Run reads one JSON-RPC request per line from in and writes responses to
// out until in is exhausted or ctx is cancelled. Unparsable lines get a parse
// error response with a null id.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	s.mu.Lock()
	s.enc = json.NewEncoder(out)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.enc = nil
		s.mu.Unlock()
	}()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			s.write(errorResponse(nil, CodeParseError, "Parse error", err.Error()))
			continue
		}

		if resp := s.handleRequest(&req); resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// NotifyStatus sends a status line to the client as a notification. It is
// safe to call from any goroutine, on a nil server, or while Run is not
// active; in the latter cases the message is dropped.
func (s *Server) NotifyStatus(msg string) {
	if s == nil {
		return
	}
	s.write(&MCPNotification{
		JSONRPC: "2.0",
		Method:  "notifications/status",
		Params:  map[string]interface{}{"message": msg},
	})
}

func (s *Server) write(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return
	}
	if err := s.enc.Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.log.WithField("method", req.Method).Debug("request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "ping":
		return result(req.ID, map[string]interface{}{})
	case "tools/list":
		return result(req.ID, map[string]interface{}{"tools": toolDefinitions()})
	case "tools/call":
		return s.handleToolsCall(req)
	case "commands/list":
		return result(req.ID, map[string]interface{}{"commands": editor.Ops()})
	case "commands/call":
		return s.handleCommandsCall(req)
	case "annotations/list":
		return result(req.ID, map[string]interface{}{"annotations": s.ed.Annotations()})
	case "annotations/thumbnail":
		return s.handleThumbnail(req)
	case "session/info":
		return result(req.ID, s.ed.Info())
	case "session/open":
		return s.handleOpen(req)
	case "image/edges":
		return s.handleEdges(req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return result(req.ID, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    "image-annotator",
			"version": s.version,
		},
	})
}

func result(id interface{}, v interface{}) *MCPResponse {
	return &MCPResponse{JSONRPC: "2.0", ID: id, Result: v}
}

// errorResponse creates a JSON-RPC error response with the given details.
func errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: message},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}
