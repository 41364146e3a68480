package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/service"
)

// StatusReader is satisfied by *status.Poller.
type StatusReader interface {
	Refresh() models.SessionStatus
}

// SessionHandler holds the session and usage endpoints.
type SessionHandler struct {
	svc    *service.SessionService
	status StatusReader
	logger *zap.Logger
}

// NewSessionHandler builds the handler set.
func NewSessionHandler(svc *service.SessionService, status StatusReader, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, status: status, logger: logger}
}

// Amounts accept JSON numbers or strings.
type startSessionRequest struct {
	Deposit   *decimal.Decimal `json:"deposit"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
}

type unitsRequest struct {
	Units int64 `json:"units"`
}

type depositRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// HandleStartSession handles POST /start-session.
func (h *SessionHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.svc.StartSession(r.Context(), decimalString(req.Deposit), decimalString(req.UnitPrice))
	if err != nil {
		writeServiceError(w, h.logger, "start session", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStopSession handles POST /stop-session.
func (h *SessionHandler) HandleStopSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.StopSession(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "stop session", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleResetSession handles POST /reset-session.
func (h *SessionHandler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ResetSession(r.Context()))
}

// HandleReportUsage handles POST /report-usage.
func (h *SessionHandler) HandleReportUsage(w http.ResponseWriter, r *http.Request) {
	var req unitsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.svc.ReportUsage(r.Context(), req.Units)
	if err != nil {
		writeServiceError(w, h.logger, "report usage", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAddDeposit handles POST /add-deposit.
func (h *SessionHandler) HandleAddDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return
	}

	res, err := h.svc.AddDeposit(r.Context(), req.Amount.String())
	if err != nil {
		writeServiceError(w, h.logger, "add deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStartAuto handles POST /usage/auto.
func (h *SessionHandler) HandleStartAuto(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.StartAutoUsage(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "start auto usage", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleStopAuto handles POST /usage/stop.
func (h *SessionHandler) HandleStopAuto(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.StopAutoUsage(r.Context()))
}

// HandleRandomUsage handles POST /usage/random.
func (h *SessionHandler) HandleRandomUsage(w http.ResponseWriter, r *http.Request) {
	units, st, err := h.svc.AddRandomUsage(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "add random usage", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"units": units, "session": st})
}

// HandleManualUsage handles POST /usage/manual.
func (h *SessionHandler) HandleManualUsage(w http.ResponseWriter, r *http.Request) {
	var req unitsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	st, err := h.svc.AddManualUsage(r.Context(), req.Units)
	if err != nil {
		writeServiceError(w, h.logger, "add manual usage", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleStatus handles GET /session/status.
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Refresh())
}

// HandleDeposit handles GET and DELETE /deposit.
func (h *SessionHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		writeJSON(w, http.StatusOK, h.svc.ClearDeposit(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Deposit())
}
