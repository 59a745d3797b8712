// ABOUTME: Session protocol engine: JSON-RPC decode, method dispatch, encode.
// ABOUTME: Owns the per-session handshake state machine shared by both transports.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/skycast/weather-mcp/internal/tools"
)

// sessionState tracks the handshake lifecycle of one session.
type sessionState int

const (
	stateUninitialized sessionState = iota
	stateInitialized
	stateClosed
)

// Engine routes JSON-RPC messages to the tool registry. One Engine instance
// is one session: per connection on stdio, per process on HTTP. The handshake
// is enforced strictly on both transports; tools/list and tools/call are
// rejected until initialize and notifications/initialized have been seen.
type Engine struct {
	registry *tools.Registry
	logger   *slog.Logger

	mu    sync.Mutex
	state sessionState
}

// NewEngine creates an engine bound to the given registry.
func NewEngine(registry *tools.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Close marks the session closed. Subsequent requests are rejected.
func (e *Engine) Close() {
	e.mu.Lock()
	e.state = stateClosed
	e.mu.Unlock()
}

// HandleRaw decodes one JSON message and dispatches it. Returns nil when the
// message is a notification. Malformed JSON yields a parse-error response with
// a null id rather than a transport failure.
func (e *Engine) HandleRaw(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewError(nil, CodeParseError, "invalid JSON", nil)
	}
	return e.Handle(ctx, &req)
}

// Handle dispatches a decoded request. Returns nil for notifications. Panics
// inside handlers are recovered and converted into internal-error responses so
// a single bad message can never kill the transport loop.
func (e *Engine) Handle(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in message handler", "method", req.Method, "panic", r)
			if !req.IsNotification() {
				resp = NewError(req.ID, CodeInternalError, fmt.Sprintf("internal error: %v", r), nil)
			}
		}
	}()

	if req.JSONRPC != "2.0" {
		if req.IsNotification() {
			return nil
		}
		return NewError(req.ID, CodeInvalidRequest, "invalid JSON-RPC version", nil)
	}

	if req.IsNotification() {
		e.handleNotification(req)
		return nil
	}

	switch req.Method {
	case MethodInitialize:
		return e.handleInitialize(req)
	case MethodToolsList:
		return e.handleToolsList(req)
	case MethodToolsCall:
		return e.handleToolsCall(ctx, req)
	default:
		return NewError(req.ID, CodeMethodNotFound, "method not found", nil)
	}
}

// handleNotification processes fire-and-forget messages.
func (e *Engine) handleNotification(req *Request) {
	switch req.Method {
	case MethodInitialized:
		e.mu.Lock()
		if e.state == stateUninitialized {
			e.state = stateInitialized
		}
		e.mu.Unlock()
		e.logger.Debug("session initialized")
	default:
		e.logger.Debug("ignoring notification", "method", req.Method)
	}
}

// handleInitialize answers the handshake. Repeated initialize requests are
// answered idempotently; the state transition happens on the initialized
// notification, not here.
func (e *Engine) handleInitialize(req *Request) *Response {
	e.mu.Lock()
	closed := e.state == stateClosed
	e.mu.Unlock()
	if closed {
		return NewError(req.ID, CodeInvalidRequest, "session closed", nil)
	}

	e.logger.Info("initialize handshake",
		"protocol_version", protocolVersion,
		"server", ServerName,
	)

	return NewResult(req.ID, InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    Capabilities{Tools: ToolsCapability{}},
		ServerInfo:      ServerInfo{Name: ServerName, Version: ServerVersion},
	})
}

// requireInitialized returns an error response when the handshake has not
// completed, nil otherwise.
func (e *Engine) requireInitialized(id json.RawMessage) *Response {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	switch state {
	case stateInitialized:
		return nil
	case stateClosed:
		return NewError(id, CodeInvalidRequest, "session closed", nil)
	default:
		return NewError(id, CodeNotInitialized, "server not initialized: complete the initialize handshake first", nil)
	}
}

func (e *Engine) handleToolsList(req *Request) *Response {
	if resp := e.requireInitialized(req.ID); resp != nil {
		return resp
	}

	descriptors := e.registry.List()
	result := ListToolsResult{Tools: make([]ToolInfo, len(descriptors))}
	for i, d := range descriptors {
		result.Tools[i] = ToolInfo{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}
	}

	e.logger.Debug("tools/list", "count", len(result.Tools))
	return NewResult(req.ID, result)
}

func (e *Engine) handleToolsCall(ctx context.Context, req *Request) *Response {
	if resp := e.requireInitialized(req.ID); resp != nil {
		return resp
	}

	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewError(req.ID, CodeInvalidParams, "invalid params", nil)
		}
	}
	if params.Name == "" {
		return NewError(req.ID, CodeInvalidParams, "tool name is required", nil)
	}

	// Correlation ID for log matching across the call.
	callID := uuid.New().String()
	e.logger.Debug("tools/call", "tool_name", params.Name, "call_id", callID)

	result, err := e.registry.Invoke(ctx, params.Name, params.Arguments)
	if err != nil {
		return e.toolErrorResponse(req.ID, params.Name, callID, err)
	}

	text, err := json.Marshal(result)
	if err != nil {
		e.logger.Error("marshaling tool result", "tool_name", params.Name, "call_id", callID, "error", err)
		return NewError(req.ID, CodeInternalError, "failed to encode tool result", nil)
	}

	e.logger.Debug("tools/call complete", "tool_name", params.Name, "call_id", callID)
	return NewResult(req.ID, CallToolResult{
		Content: []Content{{Type: "text", Text: string(text)}},
	})
}

// toolErrorResponse maps registry failures onto the wire. Unknown tools are a
// protocol-level error; argument and execution failures stay inside the tool
// result envelope so the caller can distinguish them from transport faults.
func (e *Engine) toolErrorResponse(id json.RawMessage, toolName, callID string, err error) *Response {
	e.logger.Warn("tool call failed",
		"tool_name", toolName,
		"call_id", callID,
		"error", err,
	)

	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return NewError(id, CodeInvalidParams, "tool not found", nil)
	case errors.Is(err, tools.ErrInvalidArguments):
		return NewResult(id, failedCallResult(err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(id, CodeInternalError, "tool execution timed out", nil)
	case errors.Is(err, context.Canceled):
		return NewError(id, CodeInternalError, "request cancelled", nil)
	default:
		return NewResult(id, failedCallResult(err.Error()))
	}
}

// failedCallResult wraps a failure message as an isError tool result carrying
// a success:false payload.
func failedCallResult(message string) CallToolResult {
	payload, _ := json.Marshal(map[string]any{
		"success": false,
		"message": message,
	})
	return CallToolResult{
		Content: []Content{{Type: "text", Text: string(payload)}},
		IsError: true,
	}
}
