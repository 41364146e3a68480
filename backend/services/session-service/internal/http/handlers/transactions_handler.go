package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/history"
	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/service"
)

type transactionView struct {
	models.Transaction
	ShortHash   string `json:"shortHash"`
	ExplorerURL string `json:"explorerUrl"`
}

// NewTransactionsHandler serves GET, POST and DELETE /transactions.
func NewTransactionsHandler(svc *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	type trackRequest struct {
		Hash   string `json:"hash"`
		Action string `json:"action"`
	}

	view := func(tx models.Transaction) transactionView {
		return transactionView{
			Transaction: tx,
			ShortHash:   history.ShortHash(tx.Hash),
			ExplorerURL: svc.ExplorerURL(tx.Hash),
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			limit := 0
			if raw := r.URL.Query().Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 0 {
					writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
					return
				}
				limit = n
			}
			txs := svc.Transactions(limit)
			out := make([]transactionView, 0, len(txs))
			for _, tx := range txs {
				out = append(out, view(tx))
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": out})

		case http.MethodPost:
			var req trackRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json")
				return
			}
			tx, err := svc.TrackTransaction(r.Context(), strings.TrimSpace(req.Hash), strings.TrimSpace(req.Action))
			if err != nil {
				writeServiceError(w, logger, "track transaction", err)
				return
			}
			writeJSON(w, http.StatusAccepted, view(tx))

		case http.MethodDelete:
			svc.ClearTransactions(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
