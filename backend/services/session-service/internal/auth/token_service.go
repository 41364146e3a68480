// Package auth issues and validates the wallet-bound tokens that guard session routes.
package auth

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"fairpay/backend/services/session-service/internal/clock"
)

var (
	ErrInvalidToken = errors.New("token: invalid token")
	ErrNoSecret     = errors.New("token: signing secret is required")
)

const issuer = "fairpay-session-service"

// Claims is the JWT payload. Subject carries the checksummed account.
type Claims struct {
	Account string `json:"account"`
	ChainID uint64 `json:"chain_id"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	clock     clock.Clock
}

// NewTokenService returns a configured token service.
func NewTokenService(secret string, expiresIn time.Duration, clk clock.Clock) (*TokenService, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn, clock: clk}, nil
}

// GenerateToken issues a JWT for account on chainID.
func (t *TokenService) GenerateToken(account string, chainID uint64) (string, error) {
	if !common.IsHexAddress(account) {
		return "", errors.New("token: account is required")
	}
	account = common.HexToAddress(account).Hex()

	now := t.clock.Now().UTC()
	claims := Claims{
		Account: account,
		ChainID: chainID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   account,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken verifies and decodes a JWT.
func (t *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return t.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && common.IsHexAddress(claims.Account) {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
