package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Capability is the external provider of account addresses. It is the only
// wallet surface the storefront uses; nothing is ever signed or submitted.
type Capability interface {
	RequestAccounts(ctx context.Context) ([]string, error)
}

// RPCCapability asks a JSON-RPC wallet endpoint for its accounts.
type RPCCapability struct {
	client *rpc.Client
}

// Dial connects to a wallet JSON-RPC endpoint (http, ws or ipc).
func Dial(ctx context.Context, endpoint string) (*RPCCapability, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("wallet endpoint required")
	}
	client, err := rpc.DialContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("dial wallet %s: %w", trimmed, err)
	}
	return NewRPCCapability(client), nil
}

// NewRPCCapability wraps an existing client.
func NewRPCCapability(client *rpc.Client) *RPCCapability {
	return &RPCCapability{client: client}
}

// RequestAccounts calls eth_requestAccounts. There is no retry; a rejection is
// final for this attempt.
func (c *RPCCapability) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Close releases the underlying client.
func (c *RPCCapability) Close() {
	c.client.Close()
}
