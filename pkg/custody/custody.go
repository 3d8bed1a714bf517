// Package custody signs transactions for wallets whose keys live with a
// custodial key service.
package custody

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrUnknownSigner        = errors.New("custody: unknown signing address")
	ErrActivityNotCompleted = errors.New("custody: activity not completed")
)

// Wallet is a custodial wallet with a single Ethereum account.
type Wallet struct {
	ID      string
	Address string
}

// Signer creates custodial wallets and signs transactions with them.
type Signer interface {
	CreateWallet(ctx context.Context, name string) (*Wallet, error)
	SignTransaction(ctx context.Context, signWith string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}
