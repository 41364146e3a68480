// Package wallet connects to an EIP-1193 style wallet provider and keeps it on the expected chain.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/models"
)

// Connector tracks the connected account and chain of one provider.
type Connector struct {
	mu      sync.Mutex
	account string
	chainID uint64

	provider Provider
	chain    ChainParams
	logger   *zap.Logger
}

// NewConnector builds a connector. A nil provider makes every request fail with ErrWalletUnavailable.
func NewConnector(provider Provider, chain ChainParams, logger *zap.Logger) *Connector {
	return &Connector{provider: provider, chain: chain, logger: logger}
}

// Connect requests accounts, reads the chain and switches to the expected network if needed.
// On a failed switch the account stays connected but not authed and the switch error is returned.
func (c *Connector) Connect(ctx context.Context) (models.WalletState, error) {
	if c.provider == nil {
		return models.WalletState{}, ErrWalletUnavailable
	}

	accounts, err := c.requestAccounts(ctx)
	if err != nil {
		return models.WalletState{}, err
	}
	if len(accounts) == 0 {
		return models.WalletState{}, fmt.Errorf("%w: no accounts found", ErrWalletUnavailable)
	}
	account, err := normalizeAccount(accounts[0])
	if err != nil {
		return models.WalletState{}, err
	}

	chainID, err := c.queryChainID(ctx)
	if err != nil {
		return models.WalletState{}, err
	}

	c.mu.Lock()
	c.account = account
	c.chainID = chainID
	c.mu.Unlock()
	c.logger.Info("wallet connected", zap.String("account", account), zap.Uint64("chain_id", chainID))

	if chainID != c.chain.ChainID {
		if err := c.SwitchNetwork(ctx); err != nil {
			return c.State(), err
		}
	}
	return c.State(), nil
}

func (c *Connector) requestAccounts(ctx context.Context) ([]string, error) {
	raw, err := c.provider.Request(ctx, "eth_requestAccounts")
	if err != nil && hasCode(err, CodeMethodNotFound) {
		raw, err = c.provider.Request(ctx, "eth_accounts")
	}
	if err != nil {
		return nil, classify("request accounts", err)
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("wallet: decode accounts: %w", err)
	}
	return accounts, nil
}

func (c *Connector) queryChainID(ctx context.Context) (uint64, error) {
	raw, err := c.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, classify("query chain id", err)
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, fmt.Errorf("wallet: decode chain id: %w", err)
	}
	return parseChainID(hex)
}

// Attach records an account whose ownership was proven out of band, such as by a signed sign-in
// challenge, together with the chain its wallet reported.
func (c *Connector) Attach(account string, chainID uint64) (models.WalletState, error) {
	account, err := normalizeAccount(account)
	if err != nil {
		return models.WalletState{}, err
	}
	c.mu.Lock()
	c.account = account
	c.chainID = chainID
	c.mu.Unlock()
	c.logger.Info("wallet attached", zap.String("account", account), zap.Uint64("chain_id", chainID))
	return c.State(), nil
}

// SwitchNetwork asks the wallet to move to the expected chain, adding the chain first when the
// wallet does not know it.
func (c *Connector) SwitchNetwork(ctx context.Context) error {
	if c.provider == nil {
		return ErrWalletUnavailable
	}

	target := c.chain.HexChainID()
	_, err := c.provider.Request(ctx, "wallet_switchEthereumChain", switchChainParam{ChainID: target})
	if err != nil && hasCode(err, CodeUnrecognized) {
		c.logger.Info("chain unknown to wallet, adding it", zap.String("chain_id", target))
		_, err = c.provider.Request(ctx, "wallet_addEthereumChain", c.chain.addParam())
	}
	if err != nil {
		if hasCode(err, CodeUserRejected) {
			return classify("switch network", err)
		}
		return fmt.Errorf("%w: switch to %s: %v", ErrNetworkMismatch, target, err)
	}

	chainID, err := c.queryChainID(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.chainID = chainID
	c.mu.Unlock()
	if chainID != c.chain.ChainID {
		return fmt.Errorf("%w: wallet on chain %d, want %d", ErrNetworkMismatch, chainID, c.chain.ChainID)
	}
	return nil
}

// Watch follows account and chain changes pushed by the provider. An empty account list
// disconnects.
func (c *Connector) Watch() (unsubscribe func()) {
	if c.provider == nil {
		return func() {}
	}
	offAccounts := c.provider.Subscribe(EventAccountsChanged, c.handleAccountsChanged)
	offChain := c.provider.Subscribe(EventChainChanged, c.handleChainChanged)
	return func() {
		offAccounts()
		offChain()
	}
}

func (c *Connector) handleAccountsChanged(raw json.RawMessage) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		c.logger.Warn("ignoring malformed accountsChanged event", zap.Error(err))
		return
	}
	if len(accounts) == 0 {
		c.Disconnect()
		return
	}
	account, err := normalizeAccount(accounts[0])
	if err != nil {
		c.logger.Warn("ignoring malformed account", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.account = account
	c.mu.Unlock()
}

func (c *Connector) handleChainChanged(raw json.RawMessage) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		c.logger.Warn("ignoring malformed chainChanged event", zap.Error(err))
		return
	}
	chainID, err := parseChainID(hex)
	if err != nil {
		c.logger.Warn("ignoring malformed chain id", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.chainID = chainID
	c.mu.Unlock()
}

// Disconnect forgets the account. Wallets have no revoke call, so nothing is sent to the provider.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = ""
	c.chainID = 0
}

// State returns the current wallet state.
func (c *Connector) State() models.WalletState {
	c.mu.Lock()
	defer c.mu.Unlock()
	connected := c.account != ""
	return models.WalletState{
		Account:   c.account,
		ChainID:   c.chainID,
		Connected: connected,
		Authed:    connected && c.chainID == c.chain.ChainID,
	}
}

// RequireNetwork fails unless a wallet is connected on the expected chain.
func (c *Connector) RequireNetwork() error {
	st := c.State()
	if !st.Connected {
		return fmt.Errorf("%w: not connected", ErrWalletUnavailable)
	}
	if !st.Authed {
		return fmt.Errorf("%w: wallet on chain %d, want %d", ErrNetworkMismatch, st.ChainID, c.chain.ChainID)
	}
	return nil
}

// ExpectedChain returns the configured chain.
func (c *Connector) ExpectedChain() ChainParams {
	return c.chain
}

// classify maps provider failures to wallet errors. Uncoded failures mean the provider itself is
// unreachable.
func classify(op string, err error) error {
	code, ok := errorCode(err)
	switch {
	case !ok:
		return fmt.Errorf("%w: %s: %v", ErrWalletUnavailable, op, err)
	case code == CodeUserRejected:
		return fmt.Errorf("%w: %s", ErrUserRejected, op)
	default:
		return fmt.Errorf("wallet: %s: %w", op, err)
	}
}

func parseChainID(hex string) (uint64, error) {
	id, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, fmt.Errorf("wallet: invalid chain id %q: %w", hex, err)
	}
	return id, nil
}

func normalizeAccount(account string) (string, error) {
	if !common.IsHexAddress(account) {
		return "", fmt.Errorf("wallet: invalid account %q", account)
	}
	return common.HexToAddress(account).Hex(), nil
}
