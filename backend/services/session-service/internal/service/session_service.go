// Package service orchestrates the session store, usage simulator, transaction history, mining
// monitor and deposit ledger behind the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/deposit"
	"fairpay/backend/services/session-service/internal/history"
	"fairpay/backend/services/session-service/internal/mining"
	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/money"
	"fairpay/backend/services/session-service/internal/session"
	"fairpay/backend/services/session-service/internal/status"
)

// History actions recorded by the service.
const (
	ActionStartSession = "Start Session"
	ActionCloseSession = "Close Session"
)

// Default session terms in ETH.
const (
	DefaultDeposit   = "0.1"
	DefaultUnitPrice = "0.0000001"
)

var (
	defaultDepositWei   = money.MustParseEther(DefaultDeposit)
	defaultUnitPriceWei = money.MustParseEther(DefaultUnitPrice)
)

// Config holds the session defaults and read mode.
type Config struct {
	DefaultDeposit   string
	DefaultUnitPrice string
	Mode             models.SessionMode
}

// Deps are the collaborators the service drives.
type Deps struct {
	Store     *session.Store
	Simulator *session.Simulator
	History   *history.Log
	Monitor   mining.Monitor
	Ledger    *deposit.Ledger
	// NewHash mints transaction hashes; defaults to history.NewMockHash.
	NewHash func() string
	Logger  *zap.Logger
}

// SessionService coordinates session operations.
type SessionService struct {
	store     *session.Store
	simulator *session.Simulator
	history   *history.Log
	monitor   mining.Monitor
	ledger    *deposit.Ledger
	newHash   func() string
	logger    *zap.Logger

	defaultDeposit   *big.Int
	defaultUnitPrice *big.Int
	mode             models.SessionMode

	mu       sync.Mutex
	onChange []func()
}

// New builds the service. Invalid default amounts are a configuration error.
func New(cfg Config, deps Deps) (*SessionService, error) {
	if cfg.Mode == "" {
		cfg.Mode = models.ModeSingle
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("service: unknown session mode %q", cfg.Mode)
	}
	depositWei, err := etherOrDefault(cfg.DefaultDeposit, defaultDepositWei)
	if err != nil {
		return nil, fmt.Errorf("service: default deposit: %w", err)
	}
	unitPrice, err := etherOrDefault(cfg.DefaultUnitPrice, defaultUnitPriceWei)
	if err != nil {
		return nil, fmt.Errorf("service: default unit price: %w", err)
	}
	if deps.NewHash == nil {
		deps.NewHash = history.NewMockHash
	}

	return &SessionService{
		store:            deps.Store,
		simulator:        deps.Simulator,
		history:          deps.History,
		monitor:          deps.Monitor,
		ledger:           deps.Ledger,
		newHash:          deps.NewHash,
		logger:           deps.Logger,
		defaultDeposit:   depositWei,
		defaultUnitPrice: unitPrice,
		mode:             cfg.Mode,
	}, nil
}

// OnChange registers fn to run after every session mutation.
func (s *SessionService) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *SessionService) changed() {
	s.mu.Lock()
	fns := append([]func(){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// StartSession opens a session. Empty amounts fall back to the configured defaults.
func (s *SessionService) StartSession(ctx context.Context, depositEth, unitPriceEth string) (models.TransactionResult, error) {
	depositWei, err := s.amountOrDefault(depositEth, s.defaultDeposit)
	if err != nil {
		return models.TransactionResult{}, err
	}
	unitPriceWei, err := s.amountOrDefault(unitPriceEth, s.defaultUnitPrice)
	if err != nil {
		return models.TransactionResult{}, err
	}

	s.simulator.StopAuto(ctx)
	sess, err := s.store.Start(ctx, depositWei, unitPriceWei)
	if err != nil {
		return models.TransactionResult{}, err
	}
	s.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("deposit", money.FormatEther(sess.DepositWei)),
		zap.String("unit_price", money.FormatEther(sess.UnitPriceWei)),
	)
	return s.submit(ctx, ActionStartSession)
}

// StopSession closes the active session.
func (s *SessionService) StopSession(ctx context.Context) (models.TransactionResult, error) {
	s.simulator.StopAuto(ctx)
	sess, err := s.store.Stop(ctx)
	if err != nil {
		return models.TransactionResult{}, err
	}
	s.logger.Info("session stopped", zap.String("session_id", sess.ID), zap.Uint64("consumed_units", sess.ConsumedUnits))
	return s.submit(ctx, ActionCloseSession)
}

// ResetSession stops auto usage and clears the session. No transaction is recorded.
func (s *SessionService) ResetSession(ctx context.Context) models.SessionStatus {
	s.simulator.StopAuto(ctx)
	s.store.Reset(ctx)
	s.logger.Info("session reset")
	s.changed()
	return s.Status()
}

// ReportUsage adds units to the active session and records the report.
func (s *SessionService) ReportUsage(ctx context.Context, units int64) (models.TransactionResult, error) {
	if units <= 0 {
		return models.TransactionResult{}, fmt.Errorf("%w: units must be greater than 0", session.ErrInvalidInput)
	}
	if _, err := s.store.AddUsage(ctx, uint64(units)); err != nil {
		return models.TransactionResult{}, err
	}
	return s.submit(ctx, fmt.Sprintf("Report Usage (%d units)", units))
}

// AddDeposit records a deposit in the ledger and, when a session is running, tops up its deposit.
func (s *SessionService) AddDeposit(ctx context.Context, amountEth string) (models.TransactionResult, error) {
	amountWei, err := money.ParsePositiveEther(amountEth)
	if err != nil {
		return models.TransactionResult{}, fmt.Errorf("%w: %v", session.ErrInvalidInput, err)
	}
	if _, err := s.ledger.Add(ctx, amountWei); err != nil {
		return models.TransactionResult{}, fmt.Errorf("%w: %v", session.ErrInvalidInput, err)
	}
	if _, err := s.store.AddDeposit(ctx, amountWei); err != nil && !errors.Is(err, session.ErrInactiveSession) {
		return models.TransactionResult{}, err
	}
	return s.submit(ctx, fmt.Sprintf("Add Deposit (%s ETH)", money.FormatEther(amountWei)))
}

// StartAutoUsage begins timed increments.
func (s *SessionService) StartAutoUsage(ctx context.Context) (models.SessionStatus, error) {
	if err := s.simulator.StartAuto(ctx); err != nil {
		return models.SessionStatus{}, err
	}
	s.changed()
	return s.Status(), nil
}

// StopAutoUsage cancels timed increments.
func (s *SessionService) StopAutoUsage(ctx context.Context) models.SessionStatus {
	s.simulator.StopAuto(ctx)
	s.changed()
	return s.Status()
}

// AddRandomUsage adds a random number of units and returns how many.
func (s *SessionService) AddRandomUsage(ctx context.Context) (uint64, models.SessionStatus, error) {
	units, _, err := s.simulator.AddRandom(ctx)
	if err != nil {
		return 0, models.SessionStatus{}, err
	}
	s.changed()
	return units, s.Status(), nil
}

// AddManualUsage adds units without recording a transaction.
func (s *SessionService) AddManualUsage(ctx context.Context, units int64) (models.SessionStatus, error) {
	if _, err := s.simulator.AddManual(ctx, units); err != nil {
		return models.SessionStatus{}, err
	}
	s.changed()
	return s.Status(), nil
}

// TrackTransaction records an externally submitted transaction as pending and monitors it.
func (s *SessionService) TrackTransaction(ctx context.Context, hash, action string) (models.Transaction, error) {
	if !history.ValidHash(hash) {
		return models.Transaction{}, fmt.Errorf("%w: malformed transaction hash %q", session.ErrInvalidInput, hash)
	}
	if action == "" {
		return models.Transaction{}, fmt.Errorf("%w: action is required", session.ErrInvalidInput)
	}
	if err := s.history.AddEntry(ctx, hash, action, models.TxPending); err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %v", session.ErrInvalidInput, err)
	}
	s.monitor.Watch(hash)
	tx, _ := s.history.Get(hash)
	return tx, nil
}

// Status returns the derived snapshot of the current session.
func (s *SessionService) Status() models.SessionStatus {
	return status.Compute(s.store.Snapshot(), s.mode)
}

// Transactions returns up to limit newest history entries, or all of them for limit <= 0.
func (s *SessionService) Transactions(limit int) []models.Transaction {
	if limit <= 0 {
		return s.history.All()
	}
	return s.history.Recent(limit)
}

// ClearTransactions empties the history.
func (s *SessionService) ClearTransactions(ctx context.Context) {
	s.history.Clear(ctx)
}

// Deposit returns the ledger state.
func (s *SessionService) Deposit() models.DepositState {
	return s.ledger.State()
}

// ClearDeposit forgets the recorded deposits. A running session keeps its own deposit.
func (s *SessionService) ClearDeposit(ctx context.Context) models.DepositState {
	s.ledger.Clear(ctx)
	s.logger.Info("deposit ledger cleared")
	return s.ledger.State()
}

// ExplorerURL links hash on the configured block explorer.
func (s *SessionService) ExplorerURL(hash string) string {
	return s.history.ExplorerURL(hash)
}

// Mode returns the configured read mode.
func (s *SessionService) Mode() models.SessionMode {
	return s.mode
}

func (s *SessionService) submit(ctx context.Context, action string) (models.TransactionResult, error) {
	hash := s.newHash()
	if err := s.history.AddEntry(ctx, hash, action, models.TxPending); err != nil {
		return models.TransactionResult{}, fmt.Errorf("service: record %q: %w", action, err)
	}
	s.monitor.Watch(hash)
	s.logger.Debug("transaction submitted", zap.String("hash", hash), zap.String("action", action))
	s.changed()

	st := s.Status()
	return models.TransactionResult{TxHash: hash, Result: hash, Session: &st}, nil
}

func (s *SessionService) amountOrDefault(eth string, fallback *big.Int) (*big.Int, error) {
	if eth == "" {
		return new(big.Int).Set(fallback), nil
	}
	wei, err := money.ParsePositiveEther(eth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrInvalidInput, err)
	}
	return wei, nil
}

func etherOrDefault(eth string, fallback *big.Int) (*big.Int, error) {
	if eth == "" {
		return new(big.Int).Set(fallback), nil
	}
	return money.ParsePositiveEther(eth)
}
