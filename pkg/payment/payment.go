// Package payment is the wallet-side payment flow: balance checks, USDC
// transfers from a connected wallet and confirmation polling.
package payment

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"campusconnect/pkg/evm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	msgWalletNotConnected = "Wallet not connected"
	msgConnectToPay       = "Wallet not connected. Please connect your wallet first."
	msgBalanceFailed      = "Failed to check balance. Please try again."
	msgInsufficientFunds  = "Insufficient USDC balance. Please add funds to your wallet."
	msgUserRejected       = "Payment cancelled by user."
	msgNetwork            = "Network error. Please check your connection and try again."
	msgPaymentFailed      = "Payment failed. Please try again."
)

type Config struct {
	Backend      evm.Backend
	Token        common.Address
	Decimals     int32
	ChainID      *big.Int
	Treasury     common.Address
	PollInterval time.Duration
}

type BalanceResult struct {
	Balance decimal.Decimal
	Error   string
}

type Request struct {
	Amount      decimal.Decimal
	Description string
	Recipient   string // defaults to the treasury
}

type Result struct {
	Success         bool
	TransactionHash string
	Error           string
}

// Payments tracks one user's wallet connection and in-flight payment.
type Payments struct {
	cfg   Config
	token *evm.Token

	mu         sync.Mutex
	wallet     Wallet
	processing bool
	lastErr    string
}

func New(cfg Config, wallet Wallet) *Payments {
	if cfg.Decimals == 0 {
		cfg.Decimals = 6
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Payments{cfg: cfg, token: evm.NewToken(cfg.Backend, cfg.Token, cfg.Decimals), wallet: wallet}
}

func (p *Payments) Connect(w Wallet) {
	p.mu.Lock()
	p.wallet = w
	p.mu.Unlock()
}

func (p *Payments) Disconnect() { p.Connect(nil) }

func (p *Payments) IsWalletConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wallet != nil
}

func (p *Payments) IsProcessing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processing
}

// Error returns the message of the last failed payment, if any.
func (p *Payments) Error() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Payments) currentWallet() Wallet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wallet
}

// CheckBalance reads the connected wallet's token balance. Failures are
// reported as user-facing text with a zero balance.
func (p *Payments) CheckBalance(ctx context.Context) BalanceResult {
	w := p.currentWallet()
	if w == nil {
		return BalanceResult{Balance: decimal.Zero, Error: msgWalletNotConnected}
	}
	bal, err := p.token.BalanceOf(ctx, w.Address())
	if err != nil {
		return BalanceResult{Balance: decimal.Zero, Error: msgBalanceFailed}
	}
	return BalanceResult{Balance: bal}
}

// ProcessPayment transfers req.Amount of the token from the connected wallet.
func (p *Payments) ProcessPayment(ctx context.Context, req Request) Result {
	w := p.currentWallet()
	if w == nil {
		return p.finish(Result{Error: msgConnectToPay})
	}
	p.mu.Lock()
	p.processing = true
	p.lastErr = ""
	p.mu.Unlock()

	value, err := evm.ToBaseUnits(req.Amount, p.cfg.Decimals)
	if err != nil {
		return p.finish(Result{Error: msgPaymentFailed})
	}
	recipient := p.cfg.Treasury
	if req.Recipient != "" {
		if recipient, err = evm.ParseAddress(req.Recipient); err != nil {
			return p.finish(Result{Error: msgPaymentFailed})
		}
	}
	hash, err := NewClient(p.cfg.Backend, p.token, w, p.cfg.ChainID).Transfer(ctx, recipient, value)
	if err != nil {
		return p.finish(Result{Error: describeError(err)})
	}
	return p.finish(Result{Success: true, TransactionHash: hash.Hex()})
}

func (p *Payments) finish(r Result) Result {
	p.mu.Lock()
	p.processing = false
	p.lastErr = r.Error
	p.mu.Unlock()
	return r
}

// WaitForConfirmation polls until the transaction is mined. It reports false
// without a connected wallet, for a reverted transaction and for any failure
// to find out.
func (p *Payments) WaitForConfirmation(ctx context.Context, txHash string) bool {
	if p.currentWallet() == nil || p.cfg.Backend == nil || txHash == "" {
		return false
	}
	_, err := evm.WaitMined(ctx, p.cfg.Backend, common.HexToHash(txHash), p.cfg.PollInterval)
	return err == nil
}

// describeError maps wallet and RPC errors to the text shown to the payer.
func describeError(err error) string {
	if errors.Is(err, ErrUserRejected) {
		return msgUserRejected
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return msgInsufficientFunds
	case strings.Contains(msg, "user rejected"):
		return msgUserRejected
	case strings.Contains(msg, "network"):
		return msgNetwork
	}
	return msgPaymentFailed
}

// FormatUSDC renders an amount as "$0.50 USDC".
func FormatUSDC(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2) + " USDC"
}
