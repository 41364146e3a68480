// Package mining resolves pending history entries to mined or failed, either on a simulated delay
// or by polling transaction receipts from an Ethereum node.
package mining

import (
	"context"

	"fairpay/backend/services/session-service/internal/models"
)

// StatusUpdater is the part of the history log a monitor writes to.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, hash string, status models.TransactionStatus, confirmations *int, blockNumber *uint64) bool
}

// Monitor watches submitted transaction hashes until they resolve.
type Monitor interface {
	Watch(hash string)
	// Close cancels every outstanding watch; no update happens after it returns.
	Close()
}

// Rand is the randomness a MockMiner draws from. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}
