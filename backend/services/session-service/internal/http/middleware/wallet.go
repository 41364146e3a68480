package middleware

import (
	"errors"
	"net/http"
	"strings"

	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/wallet"
)

// WalletGate is satisfied by *wallet.Connector.
type WalletGate interface {
	RequireNetwork() error
	State() models.WalletState
}

// RequireWallet rejects requests unless the connected wallet is on the expected chain and, when
// the request carries token claims, is the account the token was issued to. It must run inside
// AuthMiddleware.
func RequireWallet(gate WalletGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.RequireNetwork(); err != nil {
				status := http.StatusPreconditionFailed
				if errors.Is(err, wallet.ErrWalletUnavailable) {
					status = http.StatusServiceUnavailable
				}
				writeError(w, status, err.Error())
				return
			}
			if claims, ok := ClaimsFromContext(r.Context()); ok {
				if !strings.EqualFold(claims.Account, gate.State().Account) {
					writeError(w, http.StatusForbidden, "token was issued to a different account")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
