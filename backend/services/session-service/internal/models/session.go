package models

import "math/big"

// Session is a metered usage period bounded by a deposit and a per-unit price. Amounts are wei.
type Session struct {
	ID            string   `json:"sessionId,omitempty"`
	DepositWei    *big.Int `json:"depositWei"`
	UnitPriceWei  *big.Int `json:"unitPriceWei"`
	ConsumedUnits uint64   `json:"consumedUnits"`
	Active        bool     `json:"isActive"`
	AutoMode      bool     `json:"autoMode"`
}

// Clone returns a deep copy so callers never share big.Int pointers with the store.
func (s Session) Clone() Session {
	out := s
	out.DepositWei = cloneInt(s.DepositWei)
	out.UnitPriceWei = cloneInt(s.UnitPriceWei)
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// SessionMode selects how a client reads session state.
type SessionMode string

const (
	// ModeSingle reads the service-held session and exposes its session id.
	ModeSingle SessionMode = "single"
	// ModeDirect is reserved for reading a deployed contract; the id is omitted.
	ModeDirect SessionMode = "direct"
)

// Valid reports whether m is a known mode.
func (m SessionMode) Valid() bool {
	return m == ModeSingle || m == ModeDirect
}
