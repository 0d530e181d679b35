package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type methodFunc func(ctx context.Context, req *Request, ev *Event) (any, *RPCError)

// Dispatcher routes JSON-RPC messages to the MCP methods and the tool
// registry. It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	info         Implementation
	instructions string
	registry     *Registry
	methods      map[string]methodFunc
	observer     Observer
	logger       *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithInstructions sets the free-text hint returned from initialize.
func WithInstructions(s string) Option {
	return func(d *Dispatcher) { d.instructions = s }
}

func NewDispatcher(info Implementation, reg *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		info:     info,
		registry: reg,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.methods = map[string]methodFunc{
		"initialize":                d.initialize,
		"notifications/initialized": d.acknowledge,
		"initialized":               d.acknowledge,
		"ping":                      d.acknowledge,
		"tools/list":                d.toolsList,
		"tools/call":                d.toolsCall,
	}
	return d
}

// Info returns the server identity advertised from initialize.
func (d *Dispatcher) Info() Implementation { return d.info }

// Registry returns the tool registry the dispatcher serves.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// HandleMessage decodes one raw message and dispatches it. A message that is
// not valid JSON yields an internal-error response with a null id. The
// returned response is nil for notifications.
func (d *Dispatcher) HandleMessage(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		d.logger.Warn("malformed message", "error", err)
		return errorResponse(nil, &RPCError{
			Code:    CodeInternalError,
			Message: "internal error: parse request: " + err.Error(),
		})
	}
	return d.Handle(ctx, &req)
}

// Handle dispatches a decoded request. The returned response is nil for
// notifications.
func (d *Dispatcher) Handle(ctx context.Context, req *Request) *Response {
	start := time.Now()
	ev := Event{Method: req.Method, ID: string(req.ID), Notification: req.IsNotification()}
	ctx = d.observer.Begin(ctx, ev)

	result, rpcErr := d.dispatch(ctx, req, &ev)

	ev.Elapsed = time.Since(start)
	if rpcErr != nil {
		ev.Code = rpcErr.Code
		ev.Err = rpcErr
	}
	d.observer.End(ctx, ev)

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr)
	}
	return resultResponse(req.ID, result)
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request, ev *Event) (result any, rpcErr *RPCError) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("panic in handler", "method", req.Method, "tool", ev.Tool, "panic", p)
			result = nil
			rpcErr = &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("internal error: %v", p)}
		}
	}()

	if req.JSONRPC != jsonrpcVersion {
		return nil, &RPCError{Code: CodeInvalidRequest, Message: "invalid request: jsonrpc must be \"2.0\""}
	}
	fn, ok := d.methods[req.Method]
	if !ok {
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
	return fn(ctx, req, ev)
}

func (d *Dispatcher) initialize(_ context.Context, req *Request, _ *Event) (any, *RPCError) {
	if len(req.Params) > 0 {
		var p InitializeParams
		if err := json.Unmarshal(req.Params, &p); err == nil && p.ClientInfo.Name != "" {
			d.logger.Debug("client connected", "client", p.ClientInfo.Name, "version", p.ClientInfo.Version)
		}
	}
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ServerCapabilities{Tools: &ToolCapabilities{}},
		ServerInfo:      d.info,
		Instructions:    d.instructions,
	}, nil
}

func (d *Dispatcher) acknowledge(context.Context, *Request, *Event) (any, *RPCError) {
	return struct{}{}, nil
}

func (d *Dispatcher) toolsList(context.Context, *Request, *Event) (any, *RPCError) {
	return ToolsListResult{Tools: d.registry.Describe()}, nil
}

func (d *Dispatcher) toolsCall(ctx context.Context, req *Request, ev *Event) (any, *RPCError) {
	var params CallToolParams
	if len(req.Params) == 0 {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: missing params"}
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	if params.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: tool name is required"}
	}
	ev.Tool = params.Name

	text, err := d.registry.Invoke(ctx, params.Name, params.Arguments)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, &RPCError{
				Code:    CodeInvalidParams,
				Message: verr.Error(),
				Data:    map[string]any{"tool": verr.Tool, "problems": verr.Problems},
			}
		}
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return TextContent(text), nil
}
