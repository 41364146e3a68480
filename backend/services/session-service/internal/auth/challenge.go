package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"fairpay/backend/services/session-service/internal/clock"
)

var (
	ErrInvalidAccount    = errors.New("auth: invalid account")
	ErrChallengeNotFound = errors.New("auth: no pending sign-in challenge")
	ErrChallengeExpired  = errors.New("auth: sign-in challenge expired")
	ErrInvalidSignature  = errors.New("auth: invalid signature")
)

// DefaultChallengeTTL bounds how long an issued sign-in message can be signed.
const DefaultChallengeTTL = 5 * time.Minute

// Challenge is a one-time message the wallet signs with personal_sign to prove it owns Account.
type Challenge struct {
	Account   string    `json:"account"`
	ChainID   uint64    `json:"chainId"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Challenges keeps at most one pending challenge per account.
type Challenges struct {
	mu       sync.Mutex
	pending  map[common.Address]Challenge
	ttl      time.Duration
	clock    clock.Clock
	newNonce func() string
}

// NewChallenges returns an empty challenge store.
func NewChallenges(ttl time.Duration, clk clock.Clock) *Challenges {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &Challenges{
		pending:  make(map[common.Address]Challenge),
		ttl:      ttl,
		clock:    clk,
		newNonce: uuid.NewString,
	}
}

// Issue creates the sign-in message for account on chainID, replacing any earlier one.
func (c *Challenges) Issue(account string, chainID uint64) (Challenge, error) {
	if !common.IsHexAddress(account) {
		return Challenge{}, fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}
	addr := common.HexToAddress(account)
	now := c.clock.Now().UTC()
	nonce := c.newNonce()

	ch := Challenge{
		Account:   addr.Hex(),
		ChainID:   chainID,
		Nonce:     nonce,
		Message:   signInMessage(addr, chainID, nonce, now),
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for a, p := range c.pending {
		if !now.Before(p.ExpiresAt) {
			delete(c.pending, a)
		}
	}
	c.pending[addr] = ch
	return ch, nil
}

// Verify checks that signature is account's personal_sign signature over its pending challenge.
// The challenge is consumed whatever the outcome.
func (c *Challenges) Verify(account, signature string) (Challenge, error) {
	if !common.IsHexAddress(account) {
		return Challenge{}, fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}
	addr := common.HexToAddress(account)

	c.mu.Lock()
	ch, ok := c.pending[addr]
	delete(c.pending, addr)
	c.mu.Unlock()
	if !ok {
		return Challenge{}, ErrChallengeNotFound
	}
	if !c.clock.Now().Before(ch.ExpiresAt) {
		return Challenge{}, ErrChallengeExpired
	}

	signer, err := recoverSigner(ch.Message, signature)
	if err != nil {
		return Challenge{}, err
	}
	if signer != addr {
		return Challenge{}, fmt.Errorf("%w: signed by %s", ErrInvalidSignature, signer.Hex())
	}
	return ch, nil
}

func recoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: want %d hex-encoded bytes", ErrInvalidSignature, crypto.SignatureLength)
	}
	// Wallets return V as 27/28.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func signInMessage(addr common.Address, chainID uint64, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf("FairPay wants you to sign in with your Ethereum account:\n%s\n\nChain ID: %d\nNonce: %s\nIssued At: %s",
		addr.Hex(), chainID, nonce, issuedAt.Format(time.RFC3339))
}
