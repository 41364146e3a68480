package models

// SessionStatus is the display snapshot of a session with derived spend and refund.
// All amounts are decimal ETH strings.
type SessionStatus struct {
	ConsumedUnits uint64 `json:"consumedUnits"`
	UnitPrice     string `json:"unitPrice"`
	Deposit       string `json:"deposit"`
	Spend         string `json:"spend"`
	Refund        string `json:"refund"`
	IsActive      bool   `json:"isActive"`
	AutoMode      bool   `json:"autoMode"`
	SessionID     string `json:"sessionId,omitempty"`
}

// DepositState mirrors the persisted deposit flags.
type DepositState struct {
	HasDeposited   bool   `json:"hasDeposited"`
	TotalDeposited string `json:"totalDeposited"`
}

// WalletState describes the connected wallet.
type WalletState struct {
	Account   string `json:"account,omitempty"`
	ChainID   uint64 `json:"chainId,omitempty"`
	Connected bool   `json:"isConnected"`
	Authed    bool   `json:"isAuthed"`
}
