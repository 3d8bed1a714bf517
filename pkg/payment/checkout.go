package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateConfirming State = "confirming"
	StateSuccess    State = "success"
	StateError      State = "error"
)

const (
	msgConnectFirst = "Please connect your wallet first"
	msgNotConfirmed = "Transaction failed to confirm. Please check the blockchain explorer."
)

var ErrCheckoutBusy = errors.New("checkout is not idle")

// Checkout drives a single purchase through
// idle -> processing -> confirming -> success|error.
type Checkout struct {
	payments    *Payments
	amount      decimal.Decimal
	description string

	OnSuccess func(txHash string)
	OnError   func(message string)

	mu     sync.Mutex
	state  State
	err    string
	txHash string
}

func NewCheckout(p *Payments, amount decimal.Decimal, description string) *Checkout {
	return &Checkout{payments: p, amount: amount, description: description, state: StateIdle}
}

func (c *Checkout) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the message shown in the error state.
func (c *Checkout) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Checkout) TxHash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txHash
}

// CanClose is false while a payment is in flight.
func (c *Checkout) CanClose() bool {
	s := c.State()
	return s != StateProcessing && s != StateConfirming
}

// Open runs the pre-checks shown before the pay button is enabled.
func (c *Checkout) Open(ctx context.Context) bool {
	if !c.payments.IsWalletConnected() {
		c.fail(msgConnectFirst)
		return false
	}
	bal := c.payments.CheckBalance(ctx)
	if bal.Error != "" {
		c.fail(bal.Error)
		return false
	}
	if bal.Balance.LessThan(c.amount) {
		c.fail("Insufficient balance. You need " + FormatUSDC(c.amount) + " but only have " + FormatUSDC(bal.Balance))
		return false
	}
	return true
}

// Pay submits the transfer and waits for it to confirm. The outcome is
// reflected in State; only a checkout that is not idle returns an error.
func (c *Checkout) Pay(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrCheckoutBusy
	}
	c.state = StateProcessing
	c.mu.Unlock()

	res := c.payments.ProcessPayment(ctx, Request{Amount: c.amount, Description: c.description})
	if !res.Success {
		c.fail(res.Error)
		return nil
	}

	c.mu.Lock()
	c.state = StateConfirming
	c.txHash = res.TransactionHash
	c.mu.Unlock()

	if !c.payments.WaitForConfirmation(ctx, res.TransactionHash) {
		c.fail(msgNotConfirmed)
		return nil
	}

	c.mu.Lock()
	c.state = StateSuccess
	c.mu.Unlock()
	if c.OnSuccess != nil {
		c.OnSuccess(res.TransactionHash)
	}
	return nil
}

// Retry returns a failed checkout to idle.
func (c *Checkout) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateError {
		c.state = StateIdle
		c.err = ""
	}
}

func (c *Checkout) fail(msg string) {
	c.mu.Lock()
	c.state = StateError
	c.err = msg
	c.mu.Unlock()
	if c.OnError != nil {
		c.OnError(msg)
	}
}
