package chain

import (
	"bytes"
	"context"
	"errors"
	"faucetdrops/internal/types"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultRPCMethod = "faucet_getAllTransactions"

	maxBodyBytes = 32 << 20
)

// Client reads claim data from per-network claims indexes and from factory contracts over JSON-RPC.
// Every call is bounded by the client timeout regardless of the caller's context.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	rpcMethod string
	userAgent string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithRPCMethod(m string) Option        { return func(c *Client) { c.rpcMethod = m } }

func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http:      SharedHTTPClient(timeout),
		timeout:   timeout,
		rpcMethod: DefaultRPCMethod,
		userAgent: "faucetdrops-analytics/1.0",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SharedHTTPClient returns an HTTP client with pooled connections and the given timeout.
func SharedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// StorageClaims fetches the network claims index. Networks without a claims URL have no storage claims.
func (c *Client) StorageClaims(ctx context.Context, network types.NetworkConfig) ([]types.StorageClaim, error) {
	if network.ClaimsURL == "" {
		return []types.StorageClaim{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, network.ClaimsURL, nil)
	if err != nil {
		return nil, newUpstreamError(network.Name, network.ClaimsURL, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	doc, err := c.doJSON(req)
	if err != nil {
		return nil, newUpstreamError(network.Name, network.ClaimsURL, err)
	}
	claims, err := SelectRecords[types.StorageClaim](network.EffectiveClaimsPath(), doc)
	if err != nil {
		return nil, newUpstreamError(network.Name, network.ClaimsURL, err)
	}
	return claims, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

// FactoryTransactions asks the network RPC endpoints, in order, for the transaction log of factory. Transport
// failures move on to the next endpoint; a JSON-RPC error is final since every node would answer the same.
func (c *Client) FactoryTransactions(ctx context.Context, network types.NetworkConfig, factory string) ([]types.FactoryTransaction, error) {
	if len(network.RPCURLs) == 0 {
		return nil, newUpstreamError(network.Name, factory, fmt.Errorf("no rpc urls configured"))
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  c.rpcMethod,
		Params:  []any{factory},
		ID:      1,
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, rpcURL := range network.RPCURLs {
		doc, err := c.callRPC(ctx, rpcURL, body)
		if err != nil {
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				return nil, newUpstreamError(network.Name, rpcURL, err)
			}
			log.WithError(err).WithFields(log.Fields{
				"network": network.Name,
				"rpcURL":  rpcURL,
				"factory": factory,
			}).Warn("RPC endpoint failed, trying next")
			lastErr = err
			continue
		}
		txs, err := SelectRecords[types.FactoryTransaction](network.EffectiveTransactionsPath(), doc)
		if err != nil {
			return nil, newUpstreamError(network.Name, rpcURL, err)
		}
		return txs, nil
	}
	return nil, newUpstreamError(network.Name, factory, fmt.Errorf("all rpc endpoints failed, last error: %w", lastErr))
}

func (c *Client) callRPC(ctx context.Context, rpcURL string, body []byte) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	doc, err := c.doJSON(req)
	if err != nil {
		return nil, err
	}
	if m, ok := doc.(map[string]any); ok {
		if raw, has := m["error"]; has && raw != nil {
			b, _ := json.Marshal(raw)
			rpcErr := &RPCError{}
			if err := json.Unmarshal(b, rpcErr); err != nil || rpcErr.Message == "" {
				rpcErr.Message = string(b)
			}
			return nil, rpcErr
		}
	}
	return doc, nil
}

// doJSON executes req and decodes the body keeping numbers as json.Number so large amounts stay exact.
func (c *Client) doJSON(req *http.Request) (any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(b))
	}
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return doc, nil
}
