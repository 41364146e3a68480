package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairpay/backend/services/session-service/internal/models"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]interface{}
}

func newTestServer(t *testing.T, status int, response interface{}) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var got []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
		}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			assert.NoError(t, json.Unmarshal(raw, &rec.body))
		}
		got = append(got, rec)

		if response == nil {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestStartSessionSendsAmountsAndToken(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, models.TransactionResult{TxHash: "0xabc", Result: "0xabc"})
	c := NewSessionClient(srv.URL+"/", "tok", NewDefaultHTTPClient(time.Second))

	res, err := c.StartSession(context.Background(), "0.2", "")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", res.TxHash)

	require.Len(t, *got, 1)
	req := (*got)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/start-session", req.path)
	assert.Equal(t, "Bearer tok", req.auth)
	assert.Equal(t, map[string]interface{}{"deposit": "0.2"}, req.body)
}

func TestNoTokenSendsNoAuthorization(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, models.SessionStatus{Deposit: "0.1"})
	c := NewSessionClient(srv.URL, "", http.DefaultClient)

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.1", st.Deposit)
	assert.Empty(t, (*got)[0].auth)
}

func TestErrorResponseBecomesAPIError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusConflict, map[string]string{"error": "no active session"})
	c := NewSessionClient(srv.URL, "", http.DefaultClient)

	_, err := c.StopSession(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "no active session", apiErr.Message)
	assert.Contains(t, err.Error(), "status 409")
}

func TestConnectWalletKeepsToken(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, ConnectResult{
		Wallet:    models.WalletState{Account: "0x1", Connected: true, Authed: true},
		Token:     "issued",
		TokenType: "Bearer",
	})
	c := NewSessionClient(srv.URL, "", http.DefaultClient)

	res, err := c.ConnectWallet(context.Background(), &SignIn{Account: "0x1", Signature: "0xsig"})
	require.NoError(t, err)
	assert.True(t, res.Wallet.Authed)
	assert.Equal(t, map[string]interface{}{"account": "0x1", "signature": "0xsig"}, (*got)[0].body)

	_, err = c.Deposit(context.Background())
	require.NoError(t, err)
	require.Len(t, *got, 2)
	assert.Equal(t, "Bearer issued", (*got)[1].auth)
}

func TestConnectWalletWithoutProofSendsNoBody(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, ConnectResult{Wallet: models.WalletState{Account: "0x1", Connected: true}})
	c := NewSessionClient(srv.URL, "", http.DefaultClient)

	_, err := c.ConnectWallet(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, *got, 1)
	assert.Nil(t, (*got)[0].body)
}

func TestChallengeAndClearDeposit(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, map[string]interface{}{"account": "0x1", "message": "sign me", "nonce": "n"})
	c := NewSessionClient(srv.URL, "", http.DefaultClient)

	ch, err := c.Challenge(context.Background(), "0x1")
	require.NoError(t, err)
	assert.Equal(t, "sign me", ch.Message)
	assert.Equal(t, map[string]interface{}{"account": "0x1"}, (*got)[0].body)

	_, err = c.ClearDeposit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, (*got)[1].method)
	assert.Equal(t, "/deposit", (*got)[1].path)
}

func TestTransactionsLimitQuery(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, map[string]interface{}{
		"transactions": []TransactionView{{Transaction: models.Transaction{Hash: "0x1", Status: models.TxPending}, ShortHash: "0x1"}},
	})
	c := NewSessionClient(srv.URL, "", http.DefaultClient)

	txs, err := c.Transactions(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxPending, txs[0].Status)
	assert.Equal(t, "limit=3", (*got)[0].query)

	_, err = c.Transactions(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, (*got)[1].query)
}

func TestClearTransactionsNoContent(t *testing.T) {
	srv, got := newTestServer(t, http.StatusNoContent, nil)
	c := NewSessionClient(srv.URL, "", http.DefaultClient)

	require.NoError(t, c.ClearTransactions(context.Background()))
	assert.Equal(t, http.MethodDelete, (*got)[0].method)
}

func TestBuildURL(t *testing.T) {
	c := NewBaseClient("http://localhost:8080/", http.DefaultClient)
	assert.Equal(t, "http://localhost:8080/health", c.buildURL("health"))
	assert.Equal(t, "http://localhost:8080/health", c.buildURL("/health"))
	assert.Equal(t, "https://other/x", c.buildURL("https://other/x"))
}

func TestAPIErrorWithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := NewBaseClient(srv.URL, http.DefaultClient).DoJSON(context.Background(), http.MethodGet, "/health", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Message)
	assert.Equal(t, "GET /health: status 502", err.Error())
}
