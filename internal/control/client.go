package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is a thin line-delimited-JSON client for the control protocol
// Server implements. Each Request dials a fresh connection, matching
// the server's one-request-per-connection handling.
type Client struct {
	SocketPath string
	Timeout    time.Duration
}

// NewClient returns a Client bound to socketPath with a sane default
// per-request timeout.
func NewClient(socketPath string) *Client {
	return &Client{SocketPath: socketPath, Timeout: 2 * time.Second}
}

// Request sends {"cmd": cmd, ...extra} and returns the decoded response.
func (c *Client) Request(cmd string, extra map[string]any) (map[string]any, error) {
	conn, err := net.DialTimeout("unix", c.SocketPath, c.Timeout)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s: %w", c.SocketPath, err)
	}
	defer conn.Close()

	if c.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.Timeout))
	}

	req := map[string]any{"cmd": cmd}
	for k, v := range extra {
		req[k] = v
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("control: marshal request: %w", err)
	}
	body = append(body, '\n')
	if _, err := conn.Write(body); err != nil {
		return nil, fmt.Errorf("control: write request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxRequestLineBytes)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("control: read response: %w", err)
		}
		return nil, fmt.Errorf("control: no response from %s", c.SocketPath)
	}

	var resp map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("control: decode response: %w", err)
	}
	if ok, _ := resp["ok"].(bool); !ok {
		if msg, _ := resp["error"].(string); msg != "" {
			return nil, fmt.Errorf("control: %s", msg)
		}
		return nil, fmt.Errorf("control: request %q failed", cmd)
	}
	return resp, nil
}

// GetChain issues get_chain and returns the chain object.
func (c *Client) GetChain() (map[string]any, error) {
	resp, err := c.Request("get_chain", nil)
	if err != nil {
		return nil, err
	}
	chain, _ := resp["chain"].(map[string]any)
	return chain, nil
}

// GetStats issues get_stats and returns the stats object.
func (c *Client) GetStats() (map[string]any, error) {
	resp, err := c.Request("get_stats", nil)
	if err != nil {
		return nil, err
	}
	stats, _ := resp["stats"].(map[string]any)
	return stats, nil
}

// SetChain issues set_chain with the given chain object.
func (c *Client) SetChain(chainObj map[string]any) (map[string]any, error) {
	return c.Request("set_chain", map[string]any{"chain": chainObj})
}
