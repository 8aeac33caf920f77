package cosign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/decred/slog"
)

// MintPath is the co-signer endpoint accepting MintRequest.
const MintPath = "/v1/mint"

// maxOrderSize caps the bytes read from a co-signer response.
const maxOrderSize = 4 << 20

// Client talks to a co-signer over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	log     slog.Logger
}

// NewClient returns a client for the co-signer at baseURL.
func NewClient(baseURL string, log slog.Logger) *Client {
	if log == nil {
		log = slog.Disabled
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

// PrepareMint posts req and returns the co-signer's order. Transport
// failures wrap ErrUnavailable; refusals wrap ErrRejected.
func (c *Client) PrepareMint(ctx context.Context, req *MintRequest) (*MintOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("cosign: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+MintPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cosign: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.log.Debugf("POST %s (%d bytes of content)", MintPath, len(req.Content))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxOrderSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, msg)
	}

	var order MintOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOrder, err)
	}
	if order.UnsignedTxHex == "" || len(order.SigRequests) == 0 {
		return nil, fmt.Errorf("%w: missing transaction or requests", ErrMalformedOrder)
	}
	return &order, nil
}
