package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"partybid/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RPC method names served by the market relay.
const (
	methodSubmit  = "market_submit"
	methodAuction = "market_getAuction"
)

// RPCClient implements Market over HTTP JSON-RPC 2.0.
type RPCClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	metrics     *observability.Metrics
	requestID   atomic.Uint64
}

var _ Market = (*RPCClient)(nil)

// ClientOption configures RPCClient.
type ClientOption func(*RPCClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for read calls.
func WithMaxRetries(n int) ClientOption {
	return func(c *RPCClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

// WithMetrics records call latency into m.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *RPCClient) {
		c.metrics = m
	}
}

// NewRPCClient creates a market client for the relay at endpoint.
func NewRPCClient(endpoint string, opts ...ClientOption) *RPCClient {
	c := &RPCClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with up to retries extra attempts and
// exponential backoff. RPC-level errors are never retried.
func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, retries int, result interface{}) error {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RPCCallLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
		}
	}()

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	if retries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

type submitParams struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

// Submit sends tx exactly once. Bids move funds, so they are never retried.
func (c *RPCClient) Submit(ctx context.Context, tx Transaction) error {
	params := []interface{}{submitParams{
		From:  tx.From,
		To:    tx.To,
		Data:  tx.Data,
		Value: (*hexutil.Big)(big256(tx.Value)),
	}}
	var txHash common.Hash
	return c.call(ctx, methodSubmit, params, 0, &txHash)
}

type auctionParams struct {
	Market      common.Address `json:"market"`
	Kind        Kind           `json:"kind"`
	AuctionID   *hexutil.Big   `json:"auctionId,omitempty"`
	NFTContract common.Address `json:"nftContract"`
	TokenID     *hexutil.Big   `json:"tokenId,omitempty"`
}

type auctionResult struct {
	Ended         *bool          `json:"ended"`
	HighestBidder common.Address `json:"highestBidder"`
	HighestBid    *hexutil.Big   `json:"highestBid"`
}

// Auction queries the auction state, retrying transient failures.
func (c *RPCClient) Auction(ctx context.Context, market common.Address, kind Kind, target Target) (*AuctionStatus, error) {
	p := auctionParams{Market: market, Kind: kind, NFTContract: target.NFTContract}
	if target.AuctionID != nil {
		p.AuctionID = (*hexutil.Big)(target.AuctionID.ToBig())
	}
	if target.TokenID != nil {
		p.TokenID = (*hexutil.Big)(target.TokenID.ToBig())
	}

	var result *auctionResult
	if err := c.call(ctx, methodAuction, []interface{}{p}, c.maxRetries, &result); err != nil {
		return nil, err
	}
	if result == nil || result.Ended == nil || result.HighestBid == nil {
		return nil, fmt.Errorf("malformed auction result")
	}

	bid, overflow := uint256.FromBig(result.HighestBid.ToInt())
	if overflow || result.HighestBid.ToInt().Sign() < 0 {
		return nil, fmt.Errorf("highest bid out of range")
	}
	return &AuctionStatus{
		Ended:         *result.Ended,
		HighestBidder: result.HighestBidder,
		HighestBid:    bid,
	}, nil
}
