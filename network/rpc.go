package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/decred/slog"
)

// maxReplySize bounds a node reply. getrawtransaction with a large
// transaction is the biggest the client asks for.
const maxReplySize = 32 << 20

// RPCClient is a Node reached over the node's JSON-RPC 1.0 endpoint.
type RPCClient struct {
	url    string
	user   string
	pass   string
	rescan bool
	client *http.Client
	nextID atomic.Int64
	log    slog.Logger
}

var _ Node = (*RPCClient)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcReply struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// NewRPCClient returns a client for cfg. Requests carry Basic Auth when
// cfg.User is set.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	return &RPCClient{
		url:    cfg.URL,
		user:   cfg.User,
		pass:   cfg.Password,
		rescan: cfg.Rescan,
		log:    slog.Disabled,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// SetLogger sets the logger used for request tracing.
func (c *RPCClient) SetLogger(log slog.Logger) {
	if log == nil {
		log = slog.Disabled
	}
	c.log = log
}

// Call invokes method and decodes its result into result, which may be nil.
//
// The node answers RPC failures with HTTP 500 and a JSON error object, so
// the body is decoded before the status is judged. An error object comes
// back as *RPCError. Rejected credentials give ErrAuthFailed, transport and
// other HTTP failures ErrConnectionFailed, undecodable replies
// ErrInvalidResponse.
func (c *RPCClient) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("network: encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("network: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
	c.log.Tracef("RPC %s id=%d", method, id)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: HTTP %d", ErrAuthFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return fmt.Errorf("%w: read %s reply: %w", ErrConnectionFailed, method, err)
	}

	var reply rpcReply
	if err := json.Unmarshal(data, &reply); err != nil {
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, snippet(data))
		}
		return fmt.Errorf("%w: decode %s reply: %w", ErrInvalidResponse, method, err)
	}
	if reply.Error != nil {
		c.log.Debugf("RPC %s failed: %d %s", method, reply.Error.Code, reply.Error.Message)
		return reply.Error
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: HTTP %d without error object", ErrConnectionFailed, resp.StatusCode)
	}
	if reply.ID == nil || *reply.ID != id {
		return fmt.Errorf("%w: %s reply id does not match request %d", ErrInvalidResponse, method, id)
	}

	if result != nil && len(reply.Result) > 0 {
		if err := json.Unmarshal(reply.Result, result); err != nil {
			return fmt.Errorf("%w: %s result: %w", ErrInvalidResponse, method, err)
		}
	}
	return nil
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
