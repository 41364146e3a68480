package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/auth"
	"fairpay/backend/services/session-service/internal/money"
	"fairpay/backend/services/session-service/internal/session"
	"fairpay/backend/services/session-service/internal/wallet"
)

const maxBodyBytes = 64 * 1024

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, auth.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrChallengeNotFound), errors.Is(err, auth.ErrChallengeExpired),
		errors.Is(err, auth.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrInactiveSession):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrNetworkMismatch):
		return http.StatusPreconditionFailed
	case errors.Is(err, wallet.ErrWalletUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Unexpected errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
		writeError(w, status, op+" failed")
		return
	}
	writeError(w, status, err.Error())
}
