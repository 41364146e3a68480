package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/auth"
	"fairpay/backend/services/session-service/internal/http/middleware"
	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/wallet"
)

// WalletHandler connects the wallet and issues session tokens.
type WalletHandler struct {
	connector  *wallet.Connector
	tokens     *auth.TokenService
	challenges *auth.Challenges
	logger     *zap.Logger
}

// NewWalletHandler builds the handler. tokens and challenges are nil when auth is disabled, in which
// case connecting goes through the wallet provider and no token is issued.
func NewWalletHandler(connector *wallet.Connector, tokens *auth.TokenService, challenges *auth.Challenges, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{connector: connector, tokens: tokens, challenges: challenges, logger: logger}
}

type connectResponse struct {
	Wallet    models.WalletState `json:"wallet"`
	Token     string             `json:"token,omitempty"`
	TokenType string             `json:"token_type,omitempty"`
}

// HandleChallenge handles POST /wallet/challenge, issuing the message the wallet must sign.
func (h *WalletHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	if h.challenges == nil {
		writeError(w, http.StatusNotFound, "wallet sign-in is disabled")
		return
	}
	var req struct {
		Account string `json:"account"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ch, err := h.challenges.Issue(strings.TrimSpace(req.Account), h.connector.ExpectedChain().ChainID)
	if err != nil {
		writeServiceError(w, h.logger, "issue challenge", err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// HandleConnect handles POST /wallet/connect. With auth enabled the body must carry the account's
// signature over its pending challenge, and a token is issued only on the expected network.
func (h *WalletHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if h.challenges == nil {
		state, err := h.connector.Connect(r.Context())
		if err != nil {
			writeServiceError(w, h.logger, "connect wallet", err)
			return
		}
		writeJSON(w, http.StatusOK, connectResponse{Wallet: state})
		return
	}

	var req struct {
		Account   string `json:"account"`
		Signature string `json:"signature"`
		ChainID   uint64 `json:"chainId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Account) == "" || strings.TrimSpace(req.Signature) == "" {
		writeError(w, http.StatusBadRequest, "account and signature are required")
		return
	}

	ch, err := h.challenges.Verify(strings.TrimSpace(req.Account), strings.TrimSpace(req.Signature))
	if err != nil {
		h.logger.Warn("wallet sign-in rejected", zap.String("account", req.Account), zap.Error(err))
		writeServiceError(w, h.logger, "verify signature", err)
		return
	}
	chainID := req.ChainID
	if chainID == 0 {
		chainID = ch.ChainID
	}
	state, err := h.connector.Attach(ch.Account, chainID)
	if err != nil {
		writeServiceError(w, h.logger, "connect wallet", err)
		return
	}
	if err := h.connector.RequireNetwork(); err != nil {
		writeServiceError(w, h.logger, "connect wallet", err)
		return
	}

	token, err := h.tokens.GenerateToken(state.Account, state.ChainID)
	if err != nil {
		h.logger.Error("issue token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{Wallet: state, Token: token, TokenType: "Bearer"})
}

// HandleState handles GET /wallet. A token issued to another account than the connected one is
// refused.
func (h *WalletHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	state := h.connector.State()
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && !strings.EqualFold(claims.Account, state.Account) {
		writeError(w, http.StatusForbidden, "token was issued to a different account")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
