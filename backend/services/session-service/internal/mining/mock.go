package mining

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/clock"
	"fairpay/backend/services/session-service/internal/models"
)

// MockConfig tunes the simulated miner.
type MockConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	StartBlock  uint64
}

func (c MockConfig) withDefaults() MockConfig {
	if c.MinDelay <= 0 {
		c.MinDelay = 2 * time.Second
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay + 2*time.Second
	}
	if c.StartBlock == 0 {
		c.StartBlock = 123456
	}
	if c.FailureRate < 0 {
		c.FailureRate = 0
	}
	return c
}

// MockMiner marks watched transactions mined (or failed, with FailureRate probability) after a
// random delay in [MinDelay, MaxDelay).
type MockMiner struct {
	mu      sync.Mutex
	pending map[string]clock.Timer
	closed  bool
	block   uint64

	// inflight counts resolutions past the closed check; Close waits for them.
	inflight sync.WaitGroup

	updater StatusUpdater
	clock   clock.Clock
	rnd     Rand
	cfg     MockConfig
	logger  *zap.Logger
}

// NewMockMiner builds a miner writing to updater.
func NewMockMiner(updater StatusUpdater, clk clock.Clock, rnd Rand, cfg MockConfig, logger *zap.Logger) *MockMiner {
	cfg = cfg.withDefaults()
	return &MockMiner{
		pending: make(map[string]clock.Timer),
		block:   cfg.StartBlock,
		updater: updater,
		clock:   clk,
		rnd:     rnd,
		cfg:     cfg,
		logger:  logger,
	}
}

// Watch schedules resolution of hash. Watching a hash twice restarts its delay.
func (m *MockMiner) Watch(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if prev, ok := m.pending[hash]; ok {
		prev.Stop()
	}

	delay := m.cfg.MinDelay
	if span := m.cfg.MaxDelay - m.cfg.MinDelay; span > 0 {
		delay += time.Duration(m.rnd.IntN(int(span/time.Millisecond)+1)) * time.Millisecond
	}

	var timer clock.Timer
	timer = m.clock.AfterFunc(delay, func() { m.resolve(hash, &timer) })
	m.pending[hash] = timer
}

// resolve reads *timer only under m.mu, after Watch has stored it.
func (m *MockMiner) resolve(hash string, timer *clock.Timer) {
	m.mu.Lock()
	if m.closed || m.pending[hash] != *timer {
		m.mu.Unlock()
		return
	}
	delete(m.pending, hash)
	m.block++
	block := m.block
	failed := m.cfg.FailureRate > 0 && m.rnd.Float64() < m.cfg.FailureRate
	m.inflight.Add(1)
	m.mu.Unlock()
	defer m.inflight.Done()

	ctx := context.Background()
	if failed {
		m.updater.UpdateStatus(ctx, hash, models.TxFailed, nil, nil)
		m.logger.Info("mock transaction failed", zap.String("hash", hash))
		return
	}
	confirmations := 1
	m.updater.UpdateStatus(ctx, hash, models.TxMined, &confirmations, &block)
	m.logger.Debug("mock transaction mined", zap.String("hash", hash), zap.Uint64("block", block))
}

// Pending returns the number of unresolved watches.
func (m *MockMiner) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close stops every pending timer and waits for status updates already under way. No update is
// written after Close returns.
func (m *MockMiner) Close() {
	m.mu.Lock()
	m.closed = true
	for hash, timer := range m.pending {
		timer.Stop()
		delete(m.pending, hash)
	}
	m.mu.Unlock()
	m.inflight.Wait()
}

var _ Monitor = (*MockMiner)(nil)
