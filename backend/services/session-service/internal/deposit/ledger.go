// Package deposit keeps the running total a wallet has deposited across sessions.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/kv"
	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/money"
)

const persistTimeout = 2 * time.Second

// Ledger persists the flag under kv.KeyHasDeposited ("true") and the total, as a decimal ETH
// string, under kv.KeyDepositAmount.
type Ledger struct {
	mu        sync.Mutex
	deposited bool
	total     *big.Int

	store  kv.Store
	logger *zap.Logger
}

// NewLedger returns an empty ledger. Call Load to pick up persisted values.
func NewLedger(store kv.Store, logger *zap.Logger) *Ledger {
	return &Ledger{total: new(big.Int), store: store, logger: logger}
}

// Load reads the persisted flag and total. The total only counts when the flag is set; an
// unreadable total is logged and treated as zero.
func (l *Ledger) Load(ctx context.Context) error {
	flag, err := l.store.Get(ctx, kv.KeyHasDeposited)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("deposit: load flag: %w", err)
	}
	deposited := err == nil && string(flag) == "true"

	total := new(big.Int)
	if deposited {
		raw, err := l.store.Get(ctx, kv.KeyDepositAmount)
		switch {
		case errors.Is(err, kv.ErrNotFound):
		case err != nil:
			return fmt.Errorf("deposit: load amount: %w", err)
		default:
			parsed, perr := money.ParseEther(string(raw))
			if perr != nil {
				l.logger.Warn("discarding unreadable deposit total", zap.Error(perr))
			} else {
				total = parsed
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.deposited = deposited
	l.total = total
	return nil
}

// Add records a deposit and returns the new state.
func (l *Ledger) Add(ctx context.Context, amountWei *big.Int) (models.DepositState, error) {
	if amountWei == nil || amountWei.Sign() <= 0 {
		return models.DepositState{}, fmt.Errorf("%w: deposit must be greater than 0", money.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = new(big.Int).Add(l.total, amountWei)
	l.deposited = true

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := l.store.Set(ctx, kv.KeyDepositAmount, []byte(money.FormatEther(l.total))); err != nil {
		l.logger.Warn("failed to persist deposit total", zap.Error(err))
	}
	if err := l.store.Set(ctx, kv.KeyHasDeposited, []byte("true")); err != nil {
		l.logger.Warn("failed to persist deposit flag", zap.Error(err))
	}
	return l.stateLocked(), nil
}

// Clear forgets every deposit.
func (l *Ledger) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deposited = false
	l.total = new(big.Int)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	for _, key := range []string{kv.KeyHasDeposited, kv.KeyDepositAmount} {
		if err := l.store.Delete(ctx, key); err != nil && !errors.Is(err, kv.ErrNotFound) {
			l.logger.Warn("failed to clear deposit key", zap.String("key", key), zap.Error(err))
		}
	}
}

// State returns the current flag and total.
func (l *Ledger) State() models.DepositState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Ledger) stateLocked() models.DepositState {
	return models.DepositState{
		HasDeposited:   l.deposited,
		TotalDeposited: money.FormatEther(l.total),
	}
}
