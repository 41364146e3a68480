package mining

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fairpay/backend/services/session-service/internal/clock"
	"fairpay/backend/services/session-service/internal/models"
)

// ReceiptFetcher is satisfied by *ethclient.Client.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ReceiptConfig tunes receipt polling.
type ReceiptConfig struct {
	PollInterval time.Duration
	Timeout      time.Duration
	// RequestsPerSecond caps node calls across all watches; 0 means unlimited.
	RequestsPerSecond float64
	CallTimeout       time.Duration
}

func (c ReceiptConfig) withDefaults() ReceiptConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 4 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	return c
}

// ReceiptMonitor polls a node for receipts of watched transactions. A receipt with status 1 marks the
// entry mined at its block; any other status, or no receipt before Timeout, marks it failed.
type ReceiptMonitor struct {
	mu       sync.Mutex
	watches  map[string]*receiptWatch
	closed   bool
	inflight sync.WaitGroup

	// ctx bounds node calls and is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	fetcher ReceiptFetcher
	updater StatusUpdater
	clock   clock.Clock
	limiter *rate.Limiter
	cfg     ReceiptConfig
	logger  *zap.Logger
}

type receiptWatch struct {
	hash     common.Hash
	deadline time.Time
	timer    clock.Timer
	inFlight bool
}

// NewReceiptMonitor builds a monitor over fetcher.
func NewReceiptMonitor(fetcher ReceiptFetcher, updater StatusUpdater, clk clock.Clock, cfg ReceiptConfig, logger *zap.Logger) *ReceiptMonitor {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ReceiptMonitor{
		watches: make(map[string]*receiptWatch),
		ctx:     ctx,
		cancel:  cancel,
		fetcher: fetcher,
		updater: updater,
		clock:   clk,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		logger:  logger,
	}
}

// Watch starts polling for hash. Malformed hashes are marked failed immediately.
func (m *ReceiptMonitor) Watch(hash string) {
	if raw, err := hexutil.Decode(hash); err != nil || len(raw) != common.HashLength {
		m.logger.Warn("cannot watch malformed transaction hash", zap.String("hash", hash))
		m.updater.UpdateStatus(context.Background(), hash, models.TxFailed, nil, nil)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, ok := m.watches[hash]; ok {
		return
	}

	w := &receiptWatch{
		hash:     common.HexToHash(hash),
		deadline: m.clock.Now().Add(m.cfg.Timeout),
	}
	m.watches[hash] = w
	w.timer = m.clock.Every(m.cfg.PollInterval, func() { m.poll(hash) })
}

func (m *ReceiptMonitor) poll(key string) {
	m.mu.Lock()
	w, ok := m.watches[key]
	if !ok || m.closed || w.inFlight {
		m.mu.Unlock()
		return
	}
	m.inflight.Add(1)
	defer m.inflight.Done()
	if !m.clock.Now().Before(w.deadline) {
		m.finishLocked(key, w)
		m.mu.Unlock()
		m.logger.Warn("transaction receipt not found before timeout", zap.String("hash", key))
		m.updater.UpdateStatus(context.Background(), key, models.TxFailed, nil, nil)
		return
	}
	if !m.limiter.Allow() {
		m.mu.Unlock()
		return
	}
	w.inFlight = true
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.CallTimeout)
	receipt, err := m.fetcher.TransactionReceipt(ctx, w.hash)
	cancel()

	m.mu.Lock()
	w.inFlight = false
	if m.closed || m.watches[key] != w {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.mu.Unlock()
		if !errors.Is(err, ethereum.NotFound) {
			m.logger.Warn("fetch transaction receipt failed", zap.String("hash", key), zap.Error(err))
		}
		return
	}
	m.finishLocked(key, w)
	m.mu.Unlock()

	if receipt.Status != types.ReceiptStatusSuccessful {
		m.updater.UpdateStatus(context.Background(), key, models.TxFailed, nil, nil)
		return
	}
	confirmations := 1
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	m.updater.UpdateStatus(context.Background(), key, models.TxMined, &confirmations, &block)
}

func (m *ReceiptMonitor) finishLocked(key string, w *receiptWatch) {
	if w.timer != nil {
		w.timer.Stop()
	}
	delete(m.watches, key)
}

// Pending returns the number of hashes still being polled.
func (m *ReceiptMonitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

// Close stops all polling, cancels node calls in flight and waits for the polls running them.
// No update is written after Close returns.
func (m *ReceiptMonitor) Close() {
	m.mu.Lock()
	m.closed = true
	for key, w := range m.watches {
		m.finishLocked(key, w)
	}
	m.mu.Unlock()
	m.cancel()
	m.inflight.Wait()
}

var _ Monitor = (*ReceiptMonitor)(nil)
