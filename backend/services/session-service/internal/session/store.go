// Package session holds the metered session state and the usage simulator that drives it.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/kv"
	"fairpay/backend/services/session-service/internal/models"
)

var (
	ErrInactiveSession = errors.New("session: no active session")
	ErrInvalidInput    = errors.New("session: invalid input")
)

const persistTimeout = 2 * time.Second

// Store is the in-memory session with a persisted snapshot under kv.KeySession.
type Store struct {
	mu   sync.Mutex
	sess models.Session

	kv     kv.Store
	logger *zap.Logger
	newID  func() string
}

// NewStore returns a store with no session. Call Load to restore a persisted one.
func NewStore(store kv.Store, logger *zap.Logger) *Store {
	return &Store{
		sess:   emptySession(),
		kv:     store,
		logger: logger,
		newID:  func() string { return "session_" + uuid.NewString() },
	}
}

func emptySession() models.Session {
	return models.Session{DepositWei: new(big.Int), UnitPriceWei: new(big.Int)}
}

// Load restores the persisted snapshot. Auto mode is never restored since its timer is gone.
func (s *Store) Load(ctx context.Context) error {
	var stored models.Session
	found, err := kv.GetJSON(ctx, s.kv, kv.KeySession, &stored)
	if err != nil {
		if !found {
			return fmt.Errorf("session: load: %w", err)
		}
		s.logger.Warn("discarding unreadable session snapshot", zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	stored.AutoMode = false

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = stored.Clone()
	return nil
}

// Start opens a new session, replacing any previous one.
func (s *Store) Start(ctx context.Context, depositWei, unitPriceWei *big.Int) (models.Session, error) {
	if depositWei == nil || depositWei.Sign() <= 0 {
		return models.Session{}, fmt.Errorf("%w: deposit must be greater than 0", ErrInvalidInput)
	}
	if unitPriceWei == nil || unitPriceWei.Sign() <= 0 {
		return models.Session{}, fmt.Errorf("%w: unit price must be greater than 0", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = models.Session{
		ID:           s.newID(),
		DepositWei:   new(big.Int).Set(depositWei),
		UnitPriceWei: new(big.Int).Set(unitPriceWei),
		Active:       true,
	}
	s.persistLocked(ctx)
	return s.sess.Clone(), nil
}

// Stop marks the session inactive, keeping its figures for the final status.
func (s *Store) Stop(ctx context.Context) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sess.Active {
		return models.Session{}, ErrInactiveSession
	}
	s.sess.Active = false
	s.sess.AutoMode = false
	s.persistLocked(ctx)
	return s.sess.Clone(), nil
}

// AddUsage adds units to the active session.
func (s *Store) AddUsage(ctx context.Context, units uint64) (models.Session, error) {
	if units == 0 {
		return models.Session{}, fmt.Errorf("%w: units must be greater than 0", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sess.Active {
		return models.Session{}, ErrInactiveSession
	}
	if units > math.MaxUint64-s.sess.ConsumedUnits {
		return models.Session{}, fmt.Errorf("%w: %d units would overflow the consumed counter", ErrInvalidInput, units)
	}
	s.sess.ConsumedUnits += units
	s.persistLocked(ctx)
	return s.sess.Clone(), nil
}

// AddDeposit tops up the active session's deposit.
func (s *Store) AddDeposit(ctx context.Context, amountWei *big.Int) (models.Session, error) {
	if amountWei == nil || amountWei.Sign() <= 0 {
		return models.Session{}, fmt.Errorf("%w: deposit must be greater than 0", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sess.Active {
		return models.Session{}, ErrInactiveSession
	}
	s.sess.DepositWei = new(big.Int).Add(s.sess.DepositWei, amountWei)
	s.persistLocked(ctx)
	return s.sess.Clone(), nil
}

// SetAutoMode records whether the simulator is auto-incrementing.
func (s *Store) SetAutoMode(ctx context.Context, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess.AutoMode == on {
		return
	}
	s.sess.AutoMode = on
	s.persistLocked(ctx)
}

// Reset clears every field and drops the persisted snapshot.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = emptySession()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.kv.Delete(ctx, kv.KeySession); err != nil && !errors.Is(err, kv.ErrNotFound) {
		s.logger.Warn("failed to delete session snapshot", zap.Error(err))
	}
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Clone()
}

// Active reports whether a session is running.
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Active
}

func (s *Store) persistLocked(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := kv.SetJSON(ctx, s.kv, kv.KeySession, s.sess); err != nil {
		s.logger.Warn("failed to persist session snapshot", zap.Error(err))
	}
}
