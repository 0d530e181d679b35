package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultClientTimeout bounds a single request/response exchange.
const DefaultClientTimeout = 60 * time.Second

// ErrClosed is returned for calls on a client whose connection has ended.
var ErrClosed = errors.New("mcp connection closed")

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type transport interface {
	// roundTrip sends req and waits for its response. It returns nil for
	// notifications.
	roundTrip(ctx context.Context, req *Request) (*wireResponse, error)
	close() error
}

// Client speaks MCP to a single server over stdio or HTTP.
type Client struct {
	t     transport
	info  Implementation
	reqID atomic.Int64
}

// ClientInfo identifies this program to the servers it connects to.
var ClientInfo = Implementation{Name: "ragdemo", Version: "0.1.0"}

// Initialize performs the handshake: initialize followed by the
// notifications/initialized notification.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	var res InitializeResult
	err := c.call(ctx, "initialize", InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.info,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := c.notify(ctx, "notifications/initialized"); err != nil {
		return nil, fmt.Errorf("initialized notification: %w", err)
	}
	return &res, nil
}

// ListTools returns the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	var res ToolsListResult
	if err := c.call(ctx, "tools/list", nil, &res); err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	return res.Tools, nil
}

// CallTool invokes a tool. A JSON-RPC error from the server is returned as
// an *RPCError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	var res CallToolResult
	if err := c.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: args}, &res); err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}
	return &res, nil
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", nil, nil)
}

func (c *Client) Close() error {
	return c.t.close()
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	req := &Request{
		JSONRPC: jsonrpcVersion,
		ID:      json.RawMessage(strconv.FormatInt(c.reqID.Add(1), 10)),
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	resp, err := c.t.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("no response to %s", method)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) notify(ctx context.Context, method string) error {
	_, err := c.t.roundTrip(ctx, &Request{JSONRPC: jsonrpcVersion, Method: method})
	return err
}

// --- stream transport (stdio) ---

type streamTransport struct {
	mu      sync.Mutex
	w       io.WriteCloser
	lines   chan []byte
	readErr error
	timeout time.Duration
	onClose func() error
}

// NewStreamClient speaks newline-delimited JSON-RPC over r and w.
func NewStreamClient(r io.Reader, w io.WriteCloser) *Client {
	return &Client{t: newStreamTransport(r, w, nil), info: ClientInfo}
}

func newStreamTransport(r io.Reader, w io.WriteCloser, onClose func() error) *streamTransport {
	st := &streamTransport{
		w:       w,
		lines:   make(chan []byte, 16),
		timeout: DefaultClientTimeout,
		onClose: onClose,
	}
	go st.readLoop(r)
	return st
}

func (st *streamTransport) readLoop(r io.Reader) {
	defer close(st.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, maxLineSize), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg := make([]byte, len(line))
		copy(msg, line)
		st.lines <- msg
	}
	st.readErr = scanner.Err()
}

func (st *streamTransport) roundTrip(ctx context.Context, req *Request) (*wireResponse, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := st.w.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if req.IsNotification() {
		return nil, nil
	}

	timer := time.NewTimer(st.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("timeout after %v waiting for %s", st.timeout, req.Method)
		case line, ok := <-st.lines:
			if !ok {
				if st.readErr != nil {
					return nil, fmt.Errorf("%w: %v", ErrClosed, st.readErr)
				}
				return nil, ErrClosed
			}
			var resp wireResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				return nil, fmt.Errorf("parse response: %w", err)
			}
			// Server-initiated messages carry a method and no matching id.
			if !bytes.Equal(resp.ID, req.ID) {
				continue
			}
			return &resp, nil
		}
	}
}

func (st *streamTransport) close() error {
	err := st.w.Close()
	if st.onClose != nil {
		if cerr := st.onClose(); cerr != nil {
			return cerr
		}
	}
	return err
}

// NewStdioClient starts cmd and speaks MCP over its stdin and stdout. The
// caller decides where the child's stderr goes before passing cmd in.
// Close ends stdin, waits briefly for the child to exit, then kills it.
func NewStdioClient(cmd *exec.Cmd) (*Client, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	wait := func() error {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case err := <-done:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return nil
			}
			return err
		case <-time.After(2 * time.Second):
			_ = cmd.Process.Kill()
			<-done
			return nil
		}
	}
	return &Client{t: newStreamTransport(stdout, stdin, wait), info: ClientInfo}, nil
}

// --- HTTP transport ---

type httpTransport struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPClient posts each message to url (the server's /mcp endpoint).
// apiKey, when set, is sent as a bearer token.
func NewHTTPClient(url, apiKey string) *Client {
	return &Client{
		t: &httpTransport{
			url:    url,
			apiKey: apiKey,
			client: &http.Client{Timeout: DefaultClientTimeout},
		},
		info: ClientInfo,
	}
}

func (ht *httpTransport) roundTrip(ctx context.Context, req *Request) (*wireResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ht.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New().String()[:8])
	if ht.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+ht.apiKey)
	}

	resp, err := ht.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", ht.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || req.IsNotification() {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out wireResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return &out, nil
}

func (ht *httpTransport) close() error { return nil }
