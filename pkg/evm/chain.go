package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// TransferGasLimit covers an ERC-20 transfer to an address that already holds the token.
const TransferGasLimit uint64 = 65000

// DefaultGasPrice is used when no chain client is available to suggest one.
var DefaultGasPrice = big.NewInt(1_000_000_000)

var ErrReverted = errors.New("transaction reverted")

// ReceiptReader is the part of a chain client needed to watch a transaction.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Backend is the subset of *ethclient.Client used by this package.
type Backend interface {
	ReceiptReader
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Token is an ERC-20 contract on a given chain.
type Token struct {
	backend  Backend
	address  common.Address
	decimals int32
}

func NewToken(backend Backend, address common.Address, decimals int32) *Token {
	return &Token{backend: backend, address: address, decimals: decimals}
}

func (t *Token) Address() common.Address { return t.address }

func (t *Token) Decimals() int32 { return t.decimals }

// BalanceOf returns owner's balance in whole token units.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (decimal.Decimal, error) {
	if t.backend == nil {
		return decimal.Zero, errors.New("no chain client configured")
	}
	data, err := EncodeBalanceOf(owner)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := t.backend.CallContract(ctx, ethereum.CallMsg{To: &t.address, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf: %w", err)
	}
	raw, err := DecodeBalance(out)
	if err != nil {
		return decimal.Zero, err
	}
	return FromBaseUnits(raw, t.decimals), nil
}

// BuildTransfer returns an unsigned legacy transaction calling transfer(to, amount)
// from the given account. Without a backend the nonce is 0 and the gas price is
// DefaultGasPrice.
func (t *Token) BuildTransfer(ctx context.Context, from, to common.Address, amount decimal.Decimal) (*types.Transaction, error) {
	value, err := ToBaseUnits(amount, t.decimals)
	if err != nil {
		return nil, err
	}
	return t.BuildTransferUnits(ctx, from, to, value)
}

// BuildTransferUnits is BuildTransfer with the amount already in base units.
func (t *Token) BuildTransferUnits(ctx context.Context, from, to common.Address, value *big.Int) (*types.Transaction, error) {
	data, err := EncodeTransfer(to, value)
	if err != nil {
		return nil, err
	}
	nonce := uint64(0)
	gasPrice := new(big.Int).Set(DefaultGasPrice)
	if t.backend != nil {
		if nonce, err = t.backend.PendingNonceAt(ctx, from); err != nil {
			return nil, fmt.Errorf("nonce: %w", err)
		}
		if gasPrice, err = t.backend.SuggestGasPrice(ctx); err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      TransferGasLimit,
		To:       &t.address,
		Value:    big.NewInt(0),
		Data:     data,
	}), nil
}

// DecodeSignedTx parses a hex encoded signed transaction as returned by signers.
func DecodeSignedTx(raw string) (*types.Transaction, error) {
	if !strings.HasPrefix(raw, "0x") {
		raw = "0x" + raw
	}
	b, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode signed tx: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("decode signed tx: %w", err)
	}
	return tx, nil
}

// WaitMined polls for the receipt of hash until it is available or ctx ends.
// A receipt with failed status is returned together with ErrReverted.
func WaitMined(ctx context.Context, r ReceiptReader, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		receipt, err := r.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, ErrReverted
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
