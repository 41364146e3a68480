package wallet

import "errors"

var (
	ErrWalletUnavailable = errors.New("wallet: provider unavailable")
	ErrUserRejected      = errors.New("wallet: request rejected by user")
	ErrNetworkMismatch   = errors.New("wallet: wrong network")
)

// Provider error codes from EIP-1193, EIP-3326 and JSON-RPC.
const (
	CodeUserRejected   = 4001
	CodeUnrecognized   = 4902
	CodeMethodNotFound = -32601
)

// ProviderError is a coded failure returned by a provider. It matches the go-ethereum rpc.Error
// interface so both are inspected the same way.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

func (e *ProviderError) ErrorCode() int { return e.Code }

type codedError interface {
	error
	ErrorCode() int
}

func errorCode(err error) (int, bool) {
	var coded codedError
	if errors.As(err, &coded) {
		return coded.ErrorCode(), true
	}
	return 0, false
}

func hasCode(err error, code int) bool {
	got, ok := errorCode(err)
	return ok && got == code
}
