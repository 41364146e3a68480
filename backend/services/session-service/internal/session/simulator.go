package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/clock"
	"fairpay/backend/services/session-service/internal/models"
)

// Rand is satisfied by *rand.Rand from math/rand/v2.
type Rand interface {
	IntN(n int) int
}

// SimulatorConfig sets the increment ranges. Ranges are inclusive.
type SimulatorConfig struct {
	AutoInterval time.Duration
	AutoMin      uint64
	AutoMax      uint64
	RandomMin    uint64
	RandomMax    uint64
}

func (c SimulatorConfig) withDefaults() SimulatorConfig {
	if c.AutoInterval <= 0 {
		c.AutoInterval = 2 * time.Second
	}
	if c.AutoMin == 0 {
		c.AutoMin = 1
	}
	if c.AutoMax < c.AutoMin {
		c.AutoMax = c.AutoMin + 1
	}
	if c.RandomMin == 0 {
		c.RandomMin = 5
	}
	if c.RandomMax < c.RandomMin {
		c.RandomMax = c.RandomMin + 9
	}
	return c
}

// Simulator drives consumed units manually, randomly or on a timer.
type Simulator struct {
	mu    sync.Mutex
	timer clock.Timer
	gen   uint64

	store  *Store
	clock  clock.Clock
	rnd    Rand
	cfg    SimulatorConfig
	logger *zap.Logger
}

// NewSimulator builds a simulator over store.
func NewSimulator(store *Store, clk clock.Clock, rnd Rand, cfg SimulatorConfig, logger *zap.Logger) *Simulator {
	return &Simulator{
		store:  store,
		clock:  clk,
		rnd:    rnd,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// AddManual adds a caller-supplied number of units.
func (s *Simulator) AddManual(ctx context.Context, units int64) (models.Session, error) {
	if units <= 0 {
		return models.Session{}, fmt.Errorf("%w: units must be greater than 0", ErrInvalidInput)
	}
	return s.store.AddUsage(ctx, uint64(units))
}

// AddRandom adds between RandomMin and RandomMax units and reports how many.
func (s *Simulator) AddRandom(ctx context.Context) (uint64, models.Session, error) {
	units := s.draw(s.cfg.RandomMin, s.cfg.RandomMax)
	sess, err := s.store.AddUsage(ctx, units)
	if err != nil {
		return 0, models.Session{}, err
	}
	return units, sess, nil
}

// StartAuto begins adding AutoMin..AutoMax units every AutoInterval. Calling it while running
// replaces the timer.
func (s *Simulator) StartAuto(ctx context.Context) error {
	if !s.store.Active() {
		return ErrInactiveSession
	}

	s.mu.Lock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = s.clock.Every(s.cfg.AutoInterval, func() { s.tick(gen) })
	s.mu.Unlock()

	s.store.SetAutoMode(ctx, true)
	s.logger.Info("auto usage started", zap.Duration("interval", s.cfg.AutoInterval))
	return nil
}

// StopAuto cancels the timer. A tick already in flight is discarded.
func (s *Simulator) StopAuto(ctx context.Context) {
	s.mu.Lock()
	wasRunning := s.timer != nil
	s.stopLocked()
	s.mu.Unlock()

	s.store.SetAutoMode(ctx, false)
	if wasRunning {
		s.logger.Info("auto usage stopped")
	}
}

func (s *Simulator) stopLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Simulator) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	units := s.draw(s.cfg.AutoMin, s.cfg.AutoMax)
	if _, err := s.store.AddUsage(context.Background(), units); err != nil {
		if errors.Is(err, ErrInactiveSession) {
			s.stopLocked()
			s.logger.Info("auto usage stopped: session no longer active")
			return
		}
		s.logger.Warn("auto usage tick failed", zap.Error(err))
	}
}

func (s *Simulator) draw(lo, hi uint64) uint64 {
	if hi <= lo {
		return lo
	}
	return lo + uint64(s.rnd.IntN(int(hi-lo+1)))
}
