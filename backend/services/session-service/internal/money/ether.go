// Package money converts between decimal ETH strings and integer wei amounts.
//
// Every balance in the service is held in wei as *big.Int; decimal strings exist only at the API edge.
package money

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei digits in one ether.
const EtherDecimals = 18

var (
	// ErrInvalidAmount is returned for unparsable, negative or over-precise amounts.
	ErrInvalidAmount = errors.New("money: invalid amount")

	weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(EtherDecimals), nil)
)

// ParseEther converts a decimal ETH string such as "0.001" to wei.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, EtherDecimals)
	}
	return wei.BigInt(), nil
}

// ParsePositiveEther is ParseEther that also rejects zero.
func ParsePositiveEther(s string) (*big.Int, error) {
	wei, err := ParseEther(s)
	if err != nil {
		return nil, err
	}
	if wei.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidAmount)
	}
	return wei, nil
}

// MustParseEther panics on malformed input. Use for constants.
func MustParseEther(s string) *big.Int {
	wei, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return wei
}

// FormatEther renders wei as a decimal ETH string with trailing zeros trimmed but at least one
// fractional digit ("0.05", "1.0", "0.0"), matching how wallets display balances.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0.0"
	}
	s := decimal.NewFromBigInt(wei, -EtherDecimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Ether returns n whole ether in wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerEther)
}
