package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"firestige.xyz/wiresentry/internal/core"
)

// UDSClient is a JSON-RPC client over Unix Domain Socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a new UDS client. A zero timeout means 10s.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &UDSClient{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// Call sends a command and waits for the response. The returned Result
// holds the raw JSON result. A dial failure wraps core.ErrDaemonNotRunning.
func (c *UDSClient) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %v", core.ErrDaemonNotRunning, c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = data
	}

	reqID := fmt.Sprintf("req-%d", time.Now().UnixNano())
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      reqID,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed without response")
	}

	var raw rawResponse
	if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	respID := fmt.Sprintf("%v", raw.ID)
	if respID != reqID {
		return nil, fmt.Errorf("response ID mismatch: expected %v, got %v", reqID, respID)
	}

	return &Response{
		ID:     respID,
		Result: raw.Result,
		Error:  raw.Error,
	}, nil
}

// CallInto calls method and decodes the result into out. A JSON-RPC error
// is returned as *ErrorInfo.
func (c *UDSClient) CallInto(ctx context.Context, method string, params, out interface{}) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	raw, _ := resp.Result.(json.RawMessage)
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// ModuleList returns registered modules and available kinds.
func (c *UDSClient) ModuleList(ctx context.Context) (*ModuleListResult, error) {
	var out ModuleListResult
	if err := c.CallInto(ctx, MethodModuleList, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ModuleRegister builds and registers a module in the daemon.
func (c *UDSClient) ModuleRegister(ctx context.Context, params ModuleRegisterParams) (*ModuleResult, error) {
	var out ModuleResult
	if err := c.CallInto(ctx, MethodModuleRegister, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ModuleUnregister removes a module by ID.
func (c *UDSClient) ModuleUnregister(ctx context.Context, id string) (*ModuleResult, error) {
	var out ModuleResult
	if err := c.CallInto(ctx, MethodModuleUnregister, ModuleUnregisterParams{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AttackList returns every tracked attack.
func (c *UDSClient) AttackList(ctx context.Context) (*AttackListResult, error) {
	var out AttackListResult
	if err := c.CallInto(ctx, MethodAttackList, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DaemonStatus returns live daemon state.
func (c *UDSClient) DaemonStatus(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.CallInto(ctx, MethodDaemonStatus, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Shutdown asks the daemon to stop gracefully.
func (c *UDSClient) Shutdown(ctx context.Context) error {
	return c.CallInto(ctx, MethodDaemonShutdown, nil, nil)
}

// Ping checks that the daemon answers.
func (c *UDSClient) Ping(ctx context.Context) error {
	_, err := c.DaemonStatus(ctx)
	return err
}
