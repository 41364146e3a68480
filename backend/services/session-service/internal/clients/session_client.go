package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"fairpay/backend/services/session-service/internal/auth"
	"fairpay/backend/services/session-service/internal/models"
)

// RandomUsage is the response of POST /usage/random.
type RandomUsage struct {
	Units   uint64               `json:"units"`
	Session models.SessionStatus `json:"session"`
}

// ConnectResult is the response of POST /wallet/connect.
type ConnectResult struct {
	Wallet    models.WalletState `json:"wallet"`
	Token     string             `json:"token,omitempty"`
	TokenType string             `json:"token_type,omitempty"`
}

// SignIn proves account ownership to POST /wallet/connect on servers running with auth.
type SignIn struct {
	Account   string `json:"account"`
	Signature string `json:"signature"`
	ChainID   uint64 `json:"chainId,omitempty"`
}

// TransactionView is a history entry as served by GET /transactions.
type TransactionView struct {
	models.Transaction
	ShortHash   string `json:"shortHash"`
	ExplorerURL string `json:"explorerUrl"`
}

// SessionClient calls the session service HTTP API.
type SessionClient struct {
	base *BaseClient
}

// NewSessionClient returns client. token may be empty when the server runs without auth.
func NewSessionClient(baseURL, token string, httpClient HTTPDoer) *SessionClient {
	c := &SessionClient{base: NewBaseClient(baseURL, httpClient)}
	c.SetToken(token)
	return c
}

// SetToken replaces the bearer token used on later calls.
func (c *SessionClient) SetToken(token string) {
	if token == "" {
		c.base.SetHeader("Authorization", "")
		return
	}
	c.base.SetHeader("Authorization", "Bearer "+token)
}

// Health checks GET /health.
func (c *SessionClient) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// Challenge calls POST /wallet/challenge for the message account must sign.
func (c *SessionClient) Challenge(ctx context.Context, account string) (auth.Challenge, error) {
	var out auth.Challenge
	err := c.call(ctx, http.MethodPost, "/wallet/challenge", map[string]string{"account": account}, &out)
	return out, err
}

// ConnectWallet calls POST /wallet/connect and keeps the issued token. proof is nil against servers
// running without auth.
func (c *SessionClient) ConnectWallet(ctx context.Context, proof *SignIn) (ConnectResult, error) {
	var in interface{}
	if proof != nil {
		in = proof
	}
	var out ConnectResult
	if err := c.call(ctx, http.MethodPost, "/wallet/connect", in, &out); err != nil {
		return ConnectResult{}, err
	}
	if out.Token != "" {
		c.SetToken(out.Token)
	}
	return out, nil
}

// Wallet calls GET /wallet.
func (c *SessionClient) Wallet(ctx context.Context) (models.WalletState, error) {
	var out models.WalletState
	err := c.call(ctx, http.MethodGet, "/wallet", nil, &out)
	return out, err
}

// StartSession calls POST /start-session. Empty amounts fall back to the server defaults.
func (c *SessionClient) StartSession(ctx context.Context, depositEth, unitPriceEth string) (models.TransactionResult, error) {
	req := map[string]string{}
	if depositEth != "" {
		req["deposit"] = depositEth
	}
	if unitPriceEth != "" {
		req["unitPrice"] = unitPriceEth
	}
	var out models.TransactionResult
	err := c.call(ctx, http.MethodPost, "/start-session", req, &out)
	return out, err
}

// StopSession calls POST /stop-session.
func (c *SessionClient) StopSession(ctx context.Context) (models.TransactionResult, error) {
	var out models.TransactionResult
	err := c.call(ctx, http.MethodPost, "/stop-session", nil, &out)
	return out, err
}

// ResetSession calls POST /reset-session.
func (c *SessionClient) ResetSession(ctx context.Context) (models.SessionStatus, error) {
	var out models.SessionStatus
	err := c.call(ctx, http.MethodPost, "/reset-session", nil, &out)
	return out, err
}

// ReportUsage calls POST /report-usage.
func (c *SessionClient) ReportUsage(ctx context.Context, units int64) (models.TransactionResult, error) {
	var out models.TransactionResult
	err := c.call(ctx, http.MethodPost, "/report-usage", map[string]int64{"units": units}, &out)
	return out, err
}

// AddDeposit calls POST /add-deposit.
func (c *SessionClient) AddDeposit(ctx context.Context, amountEth string) (models.TransactionResult, error) {
	var out models.TransactionResult
	err := c.call(ctx, http.MethodPost, "/add-deposit", map[string]string{"amount": amountEth}, &out)
	return out, err
}

// StartAutoUsage calls POST /usage/auto.
func (c *SessionClient) StartAutoUsage(ctx context.Context) (models.SessionStatus, error) {
	var out models.SessionStatus
	err := c.call(ctx, http.MethodPost, "/usage/auto", nil, &out)
	return out, err
}

// StopAutoUsage calls POST /usage/stop.
func (c *SessionClient) StopAutoUsage(ctx context.Context) (models.SessionStatus, error) {
	var out models.SessionStatus
	err := c.call(ctx, http.MethodPost, "/usage/stop", nil, &out)
	return out, err
}

// AddRandomUsage calls POST /usage/random.
func (c *SessionClient) AddRandomUsage(ctx context.Context) (RandomUsage, error) {
	var out RandomUsage
	err := c.call(ctx, http.MethodPost, "/usage/random", nil, &out)
	return out, err
}

// AddManualUsage calls POST /usage/manual.
func (c *SessionClient) AddManualUsage(ctx context.Context, units int64) (models.SessionStatus, error) {
	var out models.SessionStatus
	err := c.call(ctx, http.MethodPost, "/usage/manual", map[string]int64{"units": units}, &out)
	return out, err
}

// Status calls GET /session/status.
func (c *SessionClient) Status(ctx context.Context) (models.SessionStatus, error) {
	var out models.SessionStatus
	err := c.call(ctx, http.MethodGet, "/session/status", nil, &out)
	return out, err
}

// Deposit calls GET /deposit.
func (c *SessionClient) Deposit(ctx context.Context) (models.DepositState, error) {
	var out models.DepositState
	err := c.call(ctx, http.MethodGet, "/deposit", nil, &out)
	return out, err
}

// ClearDeposit calls DELETE /deposit.
func (c *SessionClient) ClearDeposit(ctx context.Context) (models.DepositState, error) {
	var out models.DepositState
	err := c.call(ctx, http.MethodDelete, "/deposit", nil, &out)
	return out, err
}

// Transactions calls GET /transactions. limit 0 returns the whole history.
func (c *SessionClient) Transactions(ctx context.Context, limit int) ([]TransactionView, error) {
	path := "/transactions"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out struct {
		Transactions []TransactionView `json:"transactions"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// TrackTransaction calls POST /transactions.
func (c *SessionClient) TrackTransaction(ctx context.Context, hash, action string) (TransactionView, error) {
	var out TransactionView
	err := c.call(ctx, http.MethodPost, "/transactions", map[string]string{"hash": hash, "action": action}, &out)
	return out, err
}

// ClearTransactions calls DELETE /transactions.
func (c *SessionClient) ClearTransactions(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/transactions", nil, nil)
}

func (c *SessionClient) call(ctx context.Context, method, path string, in, out interface{}) error {
	return c.base.DoJSON(ctx, method, path, in, out)
}
