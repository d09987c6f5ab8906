// Package server exposes the annotation editor over JSON-RPC 2.0 on stdio.
//
// A front-end (or any MCP-compatible client) forwards canvas gestures and key
// presses here; every state change goes through editor.Apply.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported methods:
//   - initialize: Protocol handshake
//   - ping: Health check
//   - commands/list: Enumerate editor operations
//   - commands/call: Apply one editor Command and return its Result
//   - tools/list, tools/call: The same operations through MCP's tool interface
//   - annotations/list: Annotations of the current image
//   - annotations/thumbnail: Cropped PNG of one annotation
//   - session/info: Dataset position, tool, class picker and history state
//   - session/open: Open a manifest or image folder
//   - image/edges: Edge preview of the current image
//
// Status lines from the editor, including auto-save failures, are pushed as
// "notifications/status" notifications.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses with:
//   - code: -32601 unknown method, -32602 bad params or invalid command,
//     -32700 unparsable request, -32000 command failure
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	ed, _ := editor.New(editor.Options{Logger: logger})
//	srv := server.New(ed, logger, version)
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    logger.Fatal(err)
//	}
package server
