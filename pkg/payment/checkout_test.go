package payment

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutHappyPath(t *testing.T) {
	chain := &chainStub{balance: big.NewInt(5_000_000), receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}}
	c := NewCheckout(newPayments(t, chain, newWallet(t)), decimal.RequireFromString("0.5"), "Feature post")
	var got string
	c.OnSuccess = func(h string) { got = h }

	require.True(t, c.Open(context.Background()))
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, c.CanClose())

	require.NoError(t, c.Pay(context.Background()))
	assert.Equal(t, StateSuccess, c.State())
	assert.Equal(t, c.TxHash(), got)
	assert.NotEmpty(t, got)
	assert.ErrorIs(t, c.Pay(context.Background()), ErrCheckoutBusy)
}

func TestCheckoutPrechecks(t *testing.T) {
	ctx := context.Background()
	c := NewCheckout(newPayments(t, &chainStub{balance: big.NewInt(0)}, nil), decimal.NewFromInt(1), "")
	assert.False(t, c.Open(ctx))
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, "Please connect your wallet first", c.Err())

	var reported string
	c = NewCheckout(newPayments(t, &chainStub{balance: big.NewInt(250_000)}, newWallet(t)), decimal.NewFromInt(1), "")
	c.OnError = func(m string) { reported = m }
	assert.False(t, c.Open(ctx))
	assert.Equal(t, "Insufficient balance. You need $1.00 USDC but only have $0.25 USDC", c.Err())
	assert.Equal(t, c.Err(), reported)
}

func TestCheckoutUnconfirmedThenRetry(t *testing.T) {
	ctx := context.Background()
	chain := &chainStub{balance: big.NewInt(5_000_000), receiptEr: errors.New("rpc down")}
	c := NewCheckout(newPayments(t, chain, newWallet(t)), decimal.RequireFromString("0.25"), "Bump")

	require.NoError(t, c.Pay(ctx))
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, "Transaction failed to confirm. Please check the blockchain explorer.", c.Err())
	assert.True(t, c.CanClose())

	c.Retry()
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Err())

	chain.receiptEr = nil
	chain.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	require.NoError(t, c.Pay(ctx))
	assert.Equal(t, StateSuccess, c.State())
	assert.Len(t, chain.sent, 2)
}

func TestCheckoutTransferFailure(t *testing.T) {
	chain := &chainStub{sendErr: errors.New("insufficient funds for transfer")}
	c := NewCheckout(newPayments(t, chain, newWallet(t)), decimal.NewFromInt(2), "Premium group")
	require.NoError(t, c.Pay(context.Background()))
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, "Insufficient USDC balance. Please add funds to your wallet.", c.Err())
	assert.Empty(t, c.TxHash())
}
