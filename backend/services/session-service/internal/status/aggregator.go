// Package status derives spend and refund from a session and keeps subscribers up to date.
package status

import (
	"math/big"

	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/money"
)

// Derive returns spend = unitPrice × units and refund = max(deposit − spend, 0), in wei.
func Derive(depositWei, unitPriceWei *big.Int, units uint64) (spend, refund *big.Int) {
	spend = new(big.Int)
	if unitPriceWei != nil {
		spend.Mul(unitPriceWei, new(big.Int).SetUint64(units))
	}
	refund = new(big.Int)
	if depositWei != nil {
		refund.Sub(depositWei, spend)
	}
	if refund.Sign() < 0 {
		refund.SetInt64(0)
	}
	return spend, refund
}

// Compute builds the display snapshot. The session id is only exposed in single mode.
func Compute(sess models.Session, mode models.SessionMode) models.SessionStatus {
	spend, refund := Derive(sess.DepositWei, sess.UnitPriceWei, sess.ConsumedUnits)
	st := models.SessionStatus{
		ConsumedUnits: sess.ConsumedUnits,
		UnitPrice:     money.FormatEther(sess.UnitPriceWei),
		Deposit:       money.FormatEther(sess.DepositWei),
		Spend:         money.FormatEther(spend),
		Refund:        money.FormatEther(refund),
		IsActive:      sess.Active,
		AutoMode:      sess.AutoMode,
	}
	if mode != models.ModeDirect {
		st.SessionID = sess.ID
	}
	return st
}
