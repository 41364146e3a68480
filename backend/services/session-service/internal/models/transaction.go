package models

// TransactionStatus is the lifecycle state of a recorded transaction.
type TransactionStatus string

const (
	TxPending TransactionStatus = "pending"
	TxMined   TransactionStatus = "mined"
	TxFailed  TransactionStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TxPending, TxMined, TxFailed:
		return true
	}
	return false
}

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == TxMined || s == TxFailed
}

// Transaction is one entry of the transaction history. Timestamp is unix milliseconds.
type Transaction struct {
	Hash          string            `json:"hash"`
	Action        string            `json:"action"`
	Timestamp     int64             `json:"timestamp"`
	Status        TransactionStatus `json:"status"`
	Confirmations *int              `json:"confirmations,omitempty"`
	BlockNumber   *uint64           `json:"blockNumber,omitempty"`
}

// TransactionResult is returned by operations that submit a transaction. Result repeats the hash
// for clients that read it from the "result" field.
type TransactionResult struct {
	TxHash  string         `json:"txHash"`
	Result  string         `json:"result"`
	Session *SessionStatus `json:"session,omitempty"`
}
