package payment

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"campusconnect/pkg/evm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrUserRejected = errors.New("user rejected the request")

// Wallet is a wallet the payer has connected.
type Wallet interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeyWallet signs with a local private key.
type KeyWallet struct {
	key *ecdsa.PrivateKey
}

func NewKeyWallet(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key}
}

// NewKeyWalletFromHex loads a hex encoded secp256k1 key.
func NewKeyWalletFromHex(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("wallet key: %w", err)
	}
	return &KeyWallet{key: key}, nil
}

func (w *KeyWallet) Address() common.Address {
	return crypto.PubkeyToAddress(w.key.PublicKey)
}

func (w *KeyWallet) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.NewEIP155Signer(chainID), w.key)
}

// Client sends token transfers signed by one wallet.
type Client struct {
	backend evm.Backend
	token   *evm.Token
	wallet  Wallet
	chainID *big.Int
}

func NewClient(backend evm.Backend, token *evm.Token, wallet Wallet, chainID *big.Int) *Client {
	return &Client{backend: backend, token: token, wallet: wallet, chainID: chainID}
}

// Transfer builds, signs and broadcasts transfer(to, value) and returns the hash.
func (c *Client) Transfer(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error) {
	if c.backend == nil {
		return common.Hash{}, errors.New("network unavailable: no chain client configured")
	}
	tx, err := c.token.BuildTransferUnits(ctx, c.wallet.Address(), to, value)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := c.wallet.SignTx(ctx, tx, c.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}
