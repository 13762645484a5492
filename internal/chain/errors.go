package chain

import (
	"faucetdrops/internal/types"
	"fmt"
)

// UpstreamError wraps errors with the network and endpoint they came from.
type UpstreamError struct {
	Network  string
	Endpoint string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("network=%s endpoint=%s: %v", e.Network, e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{types.ErrUpstream, e.Err}
}

func newUpstreamError(network, endpoint string, err error) error {
	return &UpstreamError{Network: network, Endpoint: endpoint, Err: err}
}

// RPCError is a JSON-RPC error object returned by a node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
