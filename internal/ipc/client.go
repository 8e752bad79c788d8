package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests a new recording session.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call(serviceName+".Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop ends the active session and waits for its log entry.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call(serviceName+".Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves recorder and daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(serviceName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns the live recordings log.
func (c *Client) List() (*ListResponse, error) {
	var resp ListResponse
	if err := c.client.Call(serviceName+".List", ListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLog reads a diagnostic log from the drive.
func (c *Client) GetLog(req GetLogRequest) (*GetLogResponse, error) {
	var resp GetLogResponse
	if err := c.client.Call(serviceName+".GetLog", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns journaled sessions, newest first.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call(serviceName+".History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
