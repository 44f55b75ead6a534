// Package localchain is the relay's connection to the chain it submits
// transactions to and reads blocks from: the "local chain node" named by
// config.BaseConfig.ChainEndpoint. It speaks a minimal newline-delimited
// JSON-RPC dialect over a plain TCP or UNIX socket connection, grounded on
// rpc/lib/types' RPCRequest/RPCResponse envelope but trimmed to the four
// calls the channel contract and coordinator need from their host chain:
// dispatching an inner action, reading the chain clock, and looking up a
// past block's action digests or raw header bytes.
//
// A Client implements channel.ActionDispatcher, channel.Clock,
// channel.LocalActionIndex, and coordinator.LocalHeaderProvider, so one
// dialed connection is all run_node needs to satisfy every local-chain
// collaborator the rest of the tree requires as an injected interface.
package localchain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Request is one call sent to the local chain node.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the matching reply.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client is a persistent connection to the local chain node.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *bufio.Scanner

	mtx    sync.Mutex
	nextID uint64
}

// Dial connects to endpoint, which is a net.Dial target of the form
// "tcp://host:port" or "unix:///path/to/socket", matching the scheme
// config.BaseConfig.ChainEndpoint documents.
func Dial(endpoint string) (*Client, error) {
	network, address, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTimeout(network, address, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("localchain: dial %s: %w", endpoint, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  bufio.NewScanner(conn),
	}, nil
}

func parseEndpoint(endpoint string) (network, address string, err error) {
	switch {
	case strings.HasPrefix(endpoint, "tcp://"):
		return "tcp", strings.TrimPrefix(endpoint, "tcp://"), nil
	case strings.HasPrefix(endpoint, "unix://"):
		return "unix", strings.TrimPrefix(endpoint, "unix://"), nil
	default:
		return "", "", fmt.Errorf("localchain: endpoint %q must start with tcp:// or unix://", endpoint)
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(method string, params interface{}, result interface{}) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.nextID++
	req := Request{ID: c.nextID, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		req.Params = raw
	}
	if err := c.enc.Encode(req); err != nil {
		return fmt.Errorf("localchain: sending %s: %w", method, err)
	}

	if !c.dec.Scan() {
		if err := c.dec.Err(); err != nil {
			return fmt.Errorf("localchain: reading %s reply: %w", method, err)
		}
		return fmt.Errorf("localchain: connection closed while awaiting %s reply", method)
	}

	var resp Response
	if err := json.Unmarshal(c.dec.Bytes(), &resp); err != nil {
		return fmt.Errorf("localchain: decoding %s reply: %w", method, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("localchain: %s: %s", method, resp.Error)
	}
	if result != nil && len(resp.Result) > 0 {
		return json.Unmarshal(resp.Result, result)
	}
	return nil
}

// Dispatch implements channel.ActionDispatcher.
func (c *Client) Dispatch(actionBytes []byte) error {
	return c.call("dispatch_action", map[string]interface{}{"action": actionBytes}, nil)
}

type chainInfo struct {
	Now      uint64 `json:"now"`
	BlockNum uint64 `json:"block_num"`
}

// Now implements channel.Clock by asking the local chain node for its
// current wall-clock time.
func (c *Client) Now() uint64 {
	var info chainInfo
	if err := c.call("chain_info", nil, &info); err != nil {
		return 0
	}
	return info.Now
}

// BlockNum implements channel.Clock by asking the local chain node for its
// current block height.
func (c *Client) BlockNum() uint64 {
	var info chainInfo
	if err := c.call("chain_info", nil, &info); err != nil {
		return 0
	}
	return info.BlockNum
}

// ActionDigests implements channel.LocalActionIndex.
func (c *Client) ActionDigests(blockNum uint64) ([][]byte, error) {
	var digests [][]byte
	err := c.call("action_digests", map[string]uint64{"block_num": blockNum}, &digests)
	return digests, err
}

// HeaderBytes implements coordinator.LocalHeaderProvider.
func (c *Client) HeaderBytes(blockNum uint64) ([]byte, error) {
	var header []byte
	err := c.call("header_bytes", map[string]uint64{"block_num": blockNum}, &header)
	return header, err
}
