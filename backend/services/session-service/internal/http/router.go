package httpserver

import (
	"net/http"
	"strings"
)

// Routes groups handlers. Nil handlers are not registered.
type Routes struct {
	Health          http.HandlerFunc
	WalletChallenge http.HandlerFunc
	WalletConnect   http.HandlerFunc
	Wallet          http.HandlerFunc

	StartSession http.HandlerFunc
	StopSession  http.HandlerFunc
	ResetSession http.HandlerFunc
	ReportUsage  http.HandlerFunc
	AddDeposit   http.HandlerFunc

	AutoUsage     http.HandlerFunc
	StopAutoUsage http.HandlerFunc
	RandomUsage   http.HandlerFunc
	ManualUsage   http.HandlerFunc

	SessionStatus http.HandlerFunc
	Transactions  http.HandlerFunc
	Deposit       http.HandlerFunc
	StatusFeed    http.HandlerFunc

	// Protect wraps session routes, typically with the wallet-token middleware.
	Protect func(http.Handler) http.Handler

	// Gate additionally wraps routes that send transactions, inside Protect.
	Gate func(http.Handler) http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	identity := func(h http.Handler) http.Handler { return h }
	protect, gate := routes.Protect, routes.Gate
	if protect == nil {
		protect = identity
	}
	if gate == nil {
		gate = identity
	}

	open := func(path string, handler http.Handler) {
		mux.Handle(path, handler)
	}
	guarded := func(path string, handler http.Handler) {
		mux.Handle(path, protect(handler))
	}
	gated := func(path string, handler http.Handler) {
		mux.Handle(path, protect(gate(handler)))
	}

	register := []struct {
		path    string
		handler http.HandlerFunc
		methods []string
		reg     func(string, http.Handler)
	}{
		{"/health", routes.Health, []string{http.MethodGet}, open},
		{"/wallet/challenge", routes.WalletChallenge, []string{http.MethodPost}, open},
		{"/wallet/connect", routes.WalletConnect, []string{http.MethodPost}, open},
		{"/wallet", routes.Wallet, []string{http.MethodGet}, guarded},
		{"/start-session", routes.StartSession, []string{http.MethodPost}, gated},
		{"/stop-session", routes.StopSession, []string{http.MethodPost}, gated},
		{"/reset-session", routes.ResetSession, []string{http.MethodPost}, guarded},
		{"/report-usage", routes.ReportUsage, []string{http.MethodPost}, gated},
		{"/add-deposit", routes.AddDeposit, []string{http.MethodPost}, gated},
		{"/usage/auto", routes.AutoUsage, []string{http.MethodPost}, gated},
		{"/usage/stop", routes.StopAutoUsage, []string{http.MethodPost}, guarded},
		{"/usage/random", routes.RandomUsage, []string{http.MethodPost}, gated},
		{"/usage/manual", routes.ManualUsage, []string{http.MethodPost}, gated},
		{"/session/status", routes.SessionStatus, []string{http.MethodGet}, guarded},
		{"/transactions", routes.Transactions, []string{http.MethodGet, http.MethodPost, http.MethodDelete}, guarded},
		{"/deposit", routes.Deposit, []string{http.MethodGet, http.MethodDelete}, guarded},
		{"/ws/status", routes.StatusFeed, []string{http.MethodGet}, guarded},
	}
	for _, r := range register {
		if r.handler != nil {
			r.reg(r.path, method(r.handler, r.methods...))
		}
	}
	return mux
}

func method(handler http.HandlerFunc, allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, m := range allowed {
			if r.Method == m {
				handler(w, r)
				return
			}
		}
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
