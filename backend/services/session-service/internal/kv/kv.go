// Package kv is the key-value persistence the session service writes its state to.
package kv

import (
	"context"
	"encoding/json"
	"errors"
)

// Storage keys shared with the browser client.
const (
	KeyTxHistory     = "fairpay-tx-history"
	KeyDepositAmount = "fairpay_deposit_amount"
	KeyHasDeposited  = "fairpay_has_deposited"
	KeySession       = "fairpay_session"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("kv: key not found")

// Store is a flat key-value store. Keys are independent; there is no schema versioning.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value at key into target. found is false when the key is missing.
func GetJSON(ctx context.Context, s Store, key string, target interface{}) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return true, err
	}
	return true, nil
}

// SetJSON encodes value and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data)
}
