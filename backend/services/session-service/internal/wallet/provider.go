package wallet

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the request surface of an injected or remote wallet.
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	// Subscribe registers handler for a provider event such as accountsChanged and returns a
	// function removing it.
	Subscribe(event string, handler func(json.RawMessage)) (unsubscribe func())
}

// Provider events.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// RPCProvider serves wallet requests from a JSON-RPC node. Nodes cannot push wallet events, so
// Subscribe registers nothing.
type RPCProvider struct {
	client *rpc.Client
}

// NewRPCProvider wraps an existing client.
func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

func (p *RPCProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *RPCProvider) Subscribe(string, func(json.RawMessage)) func() {
	return func() {}
}

var _ Provider = (*RPCProvider)(nil)
