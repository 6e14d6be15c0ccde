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
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping checks whether the daemon is alive.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Trove.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Trove.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartIndexing launches a background scan.
func (c *Client) StartIndexing(root string, rebuild bool) (*StartIndexingResponse, error) {
	var resp StartIndexingResponse
	req := StartIndexingRequest{Root: root, Rebuild: rebuild}
	if err := c.client.Call("Trove.StartIndexing", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopIndexing cancels an in-flight scan.
func (c *Client) StopIndexing() (*StopIndexingResponse, error) {
	var resp StopIndexingResponse
	if err := c.client.Call("Trove.StopIndexing", StopIndexingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IndexStats retrieves aggregate index statistics.
func (c *Client) IndexStats() (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.client.Call("Trove.GetIndexStats", StatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Trove.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
