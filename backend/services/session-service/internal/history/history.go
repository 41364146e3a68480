// Package history keeps the bounded, most-recent-first transaction log.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/clock"
	"fairpay/backend/services/session-service/internal/kv"
	"fairpay/backend/services/session-service/internal/models"
)

const (
	// DefaultMaxEntries bounds the log when Config.MaxEntries is not set.
	DefaultMaxEntries = 50
	// DefaultRecent is the number of entries Recent returns for a non-positive limit.
	DefaultRecent = 3

	persistTimeout = 2 * time.Second
)

// ErrInvalidEntry is returned for an empty hash or unknown status.
var ErrInvalidEntry = errors.New("history: invalid entry")

// Config tunes the log.
type Config struct {
	MaxEntries   int
	ExplorerBase string
}

// Log is the transaction history. Entries are newest first and persisted as a JSON array under
// kv.KeyTxHistory after every change; persistence failures are logged, never returned.
type Log struct {
	mu      sync.Mutex
	entries []models.Transaction

	store        kv.Store
	clock        clock.Clock
	logger       *zap.Logger
	maxEntries   int
	explorerBase string
}

// New returns an empty log. Call Load to pick up persisted entries.
func New(store kv.Store, clk clock.Clock, logger *zap.Logger, cfg Config) *Log {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.ExplorerBase == "" {
		cfg.ExplorerBase = DefaultExplorerBase
	}
	return &Log{
		store:        store,
		clock:        clk,
		logger:       logger,
		maxEntries:   cfg.MaxEntries,
		explorerBase: cfg.ExplorerBase,
	}
}

// Load replaces the in-memory entries with the persisted list. A corrupt list is logged and
// treated as empty.
func (l *Log) Load(ctx context.Context) error {
	var stored []models.Transaction
	found, err := kv.GetJSON(ctx, l.store, kv.KeyTxHistory, &stored)
	if err != nil {
		if !found {
			return fmt.Errorf("history: load: %w", err)
		}
		l.logger.Warn("discarding unreadable transaction history", zap.Error(err))
		stored = nil
	}
	if len(stored) > l.maxEntries {
		stored = stored[:l.maxEntries]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = stored
	return nil
}

// AddEntry records hash at the head of the log. A known hash is updated in place instead: its
// status and timestamp change unless the entry is already mined or failed.
func (l *Log) AddEntry(ctx context.Context, hash, action string, status models.TransactionStatus) error {
	if hash == "" || !status.Valid() {
		return fmt.Errorf("%w: hash=%q status=%q", ErrInvalidEntry, hash, status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now().UnixMilli()
	if i := l.indexLocked(hash); i >= 0 {
		if l.entries[i].Status.Terminal() {
			return nil
		}
		l.entries[i].Status = status
		l.entries[i].Timestamp = now
		l.persistLocked(ctx)
		return nil
	}

	entry := models.Transaction{
		Hash:      hash,
		Action:    action,
		Timestamp: now,
		Status:    status,
	}
	l.entries = append([]models.Transaction{entry}, l.entries...)
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[:l.maxEntries]
	}
	l.persistLocked(ctx)
	return nil
}

// UpdateStatus sets the status of a pending entry. It reports whether an entry changed; unknown
// hashes and entries that already reached mined or failed are left alone.
func (l *Log) UpdateStatus(ctx context.Context, hash string, status models.TransactionStatus, confirmations *int, blockNumber *uint64) bool {
	if !status.Valid() {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexLocked(hash)
	if i < 0 || l.entries[i].Status.Terminal() {
		return false
	}
	entry := &l.entries[i]
	entry.Status = status
	entry.Confirmations = confirmations
	entry.BlockNumber = blockNumber
	entry.Timestamp = l.clock.Now().UnixMilli()
	l.persistLocked(ctx)
	return true
}

// Get returns the entry for hash.
func (l *Log) Get(hash string) (models.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(hash); i >= 0 {
		return l.entries[i], true
	}
	return models.Transaction{}, false
}

// Recent returns up to limit newest entries.
func (l *Log) Recent(limit int) []models.Transaction {
	if limit <= 0 {
		limit = DefaultRecent
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit > len(l.entries) {
		limit = len(l.entries)
	}
	return append([]models.Transaction(nil), l.entries[:limit]...)
}

// All returns every entry, newest first.
func (l *Log) All() []models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Transaction(nil), l.entries...)
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every entry and deletes the persisted key.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := l.store.Delete(ctx, kv.KeyTxHistory); err != nil && !errors.Is(err, kv.ErrNotFound) {
		l.logger.Warn("failed to clear transaction history", zap.Error(err))
	}
}

// ExplorerURL links hash on the configured explorer.
func (l *Log) ExplorerURL(hash string) string {
	return ExplorerURL(l.explorerBase, hash)
}

func (l *Log) indexLocked(hash string) int {
	for i := range l.entries {
		if l.entries[i].Hash == hash {
			return i
		}
	}
	return -1
}

// persistLocked runs under l.mu so concurrent writers cannot reorder snapshots.
func (l *Log) persistLocked(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := kv.SetJSON(ctx, l.store, kv.KeyTxHistory, l.entries); err != nil {
		l.logger.Warn("failed to save transaction history", zap.Error(err))
	}
}
