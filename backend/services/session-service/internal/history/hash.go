package history

import (
	"crypto/rand"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// DefaultExplorerBase is the Sepolia Etherscan instance.
const DefaultExplorerBase = "https://sepolia.etherscan.io"

// NewMockHash returns a random 0x-prefixed 32-byte hash for simulated transactions.
func NewMockHash() string {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		panic(err)
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	return common.BytesToHash(h.Sum(nil)).Hex()
}

// ValidHash reports whether s is a 0x-prefixed 32-byte hex hash.
func ValidHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

// ShortHash abbreviates a hash as 0x1234...abcd.
func ShortHash(hash string) string {
	if len(hash) < 10 {
		return hash
	}
	return hash[:6] + "..." + hash[len(hash)-4:]
}

// ExplorerURL links a transaction on the given block explorer.
func ExplorerURL(base, hash string) string {
	if base == "" {
		base = DefaultExplorerBase
	}
	return strings.TrimRight(base, "/") + "/tx/" + hash
}
