// Package httpagent talks to a remote Device Access Agent over its JSON
// request/response API.
package httpagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/models"
)

// Timeouts bounds each class of agent call.
type Timeouts struct {
	Get  time.Duration // single gets, probes, device discovery
	Walk time.Duration // walks and table discovery
	CLI  time.Duration // session connect/execute
}

// DefaultTimeouts matches the agent's own per-call budget.
var DefaultTimeouts = Timeouts{
	Get:  5 * time.Second,
	Walk: 30 * time.Second,
	CLI:  20 * time.Second,
}

// Client implements agent.Agent against a base URL such as
// http://127.0.0.1:8090.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts Timeouts
}

// NewClient creates a client. A zero Timeouts field falls back to
// DefaultTimeouts.
func NewClient(baseURL string, timeouts Timeouts) *Client {
	if timeouts.Get <= 0 {
		timeouts.Get = DefaultTimeouts.Get
	}
	if timeouts.Walk <= 0 {
		timeouts.Walk = DefaultTimeouts.Walk
	}
	if timeouts.CLI <= 0 {
		timeouts.CLI = DefaultTimeouts.CLI
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
		timeouts: timeouts,
	}
}

// errorBody is the envelope the agent uses for failures.
type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, timeout time.Duration, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errdefs.Connectivity(path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errdefs.Protocol(path, fmt.Errorf("timed out after %v: %w", timeout, err))
		}
		return errdefs.Connectivity(path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errdefs.Protocol(path, fmt.Errorf("failed to read response: %w", err))
	}

	var eb errorBody
	_ = json.Unmarshal(data, &eb)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := eb.Error
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return errdefs.Protocolf(path, "agent returned %d: %s", resp.StatusCode, msg)
	}
	if eb.Error != "" {
		return errdefs.Protocolf(path, "%s", eb.Error)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errdefs.Protocol(path, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", c.timeouts.Get, nil, nil)
}

func (c *Client) Probe(ctx context.Context, req agent.ProbeRequest) (*agent.ProbeResponse, error) {
	var out agent.ProbeResponse
	if err := c.do(ctx, http.MethodPost, "/probe", c.timeouts.Get, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SNMPGet(ctx context.Context, req agent.GetRequest) (*agent.GetResponse, error) {
	var out agent.GetResponse
	if err := c.do(ctx, http.MethodPost, "/snmp/get", c.timeouts.Get, req, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = map[string]string{}
	}
	return &out, nil
}

func (c *Client) SNMPWalk(ctx context.Context, req agent.WalkRequest) (*agent.WalkResponse, error) {
	var out agent.WalkResponse
	if err := c.do(ctx, http.MethodPost, "/snmp/walk", c.timeouts.Walk, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DiscoverDevice(ctx context.Context, req agent.DeviceRequest) (*agent.DeviceResponse, error) {
	var out agent.DeviceResponse
	if err := c.do(ctx, http.MethodPost, "/snmp/discover-device", c.timeouts.Get, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DiscoverVlans(ctx context.Context, req agent.VlanRequest) (*agent.VlanResponse, error) {
	var out agent.VlanResponse
	if err := c.do(ctx, http.MethodPost, "/snmp/discover-vlans", c.timeouts.Walk, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DiscoverMacAddresses(ctx context.Context, req agent.MacRequest) (*agent.MacResponse, error) {
	var out agent.MacResponse
	// one walk per VLAN on the agent side
	timeout := c.timeouts.Walk * time.Duration(len(req.VlanIDs)+1)
	if err := c.do(ctx, http.MethodPost, "/snmp/discover-mac-addresses", timeout, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func sessionPath(method models.ConnectionMethod, op string) (string, error) {
	switch method {
	case models.MethodSSH, models.MethodTelnet:
		return "/" + string(method) + "/" + op, nil
	}
	return "", errdefs.Validationf("httpagent."+op, "connection method %q has no session API", method)
}

func (c *Client) Connect(ctx context.Context, req agent.ConnectRequest) (*agent.ConnectResponse, error) {
	path, err := sessionPath(req.Method, "connect")
	if err != nil {
		return nil, err
	}
	var out agent.ConnectResponse
	if err := c.do(ctx, http.MethodPost, path, c.timeouts.CLI, req, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, errdefs.Protocolf(path, "agent returned no session id")
	}
	return &out, nil
}

func (c *Client) Execute(ctx context.Context, req agent.ExecuteRequest) (*agent.ExecuteResponse, error) {
	path, err := sessionPath(req.Method, "execute")
	if err != nil {
		return nil, err
	}
	var out agent.ExecuteResponse
	if err := c.do(ctx, http.MethodPost, path, c.timeouts.CLI, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Disconnect(ctx context.Context, req agent.DisconnectRequest) error {
	path, err := sessionPath(req.Method, "disconnect")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, c.timeouts.Get, req, nil)
}
