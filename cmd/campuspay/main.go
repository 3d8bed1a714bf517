// Command campuspay pays CampusConnect fees from a local wallet key, the way
// the web checkout does from a browser wallet.
//
//	campuspay balance
//	campuspay pay -amount 0.50 -description "Feature post"
//
// Chain settings come from the same environment as the server; the key from
// WALLET_PRIVATE_KEY.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"campusconnect/config"
	"campusconnect/internal/domain"
	"campusconnect/internal/logger"
	"campusconnect/pkg/evm"
	"campusconnect/pkg/payment"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cfg := config.Load()
	log, err := logger.New(cfg.Log.Level, cfg.Server.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Chain.RPCURL == "" {
		log.Fatal("CHAIN_RPC_URL is required")
	}
	client, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		log.Fatal("dial rpc", zap.Error(err))
	}
	defer client.Close()

	usdc, err := evm.ParseAddress(cfg.Chain.USDCAddress)
	if err != nil {
		log.Fatal("USDC_ADDRESS", zap.Error(err))
	}
	treasury, err := evm.ParseAddress(cfg.Chain.TreasuryAddress)
	if err != nil {
		log.Fatal("CAMPUS_CONNECT_TREASURY_ADDRESS", zap.Error(err))
	}
	p := payment.New(payment.Config{
		Backend:      client,
		Token:        usdc,
		Decimals:     domain.USDCDecimals,
		ChainID:      big.NewInt(cfg.Chain.ChainID),
		Treasury:     treasury,
		PollInterval: cfg.Payment.PollInterval,
	}, nil)
	if key := os.Getenv("WALLET_PRIVATE_KEY"); key != "" {
		w, err := payment.NewKeyWalletFromHex(key)
		if err != nil {
			log.Fatal("WALLET_PRIVATE_KEY", zap.Error(err))
		}
		p.Connect(w)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Payment.ConfirmationTimeout+30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "balance":
		res := p.CheckBalance(ctx)
		if res.Error != "" {
			log.Fatal(res.Error)
		}
		fmt.Println(payment.FormatUSDC(res.Balance))
	case "pay":
		fs := flag.NewFlagSet("pay", flag.ExitOnError)
		amount := fs.String("amount", "", "USDC amount, e.g. 0.50")
		description := fs.String("description", "", "what the payment is for")
		_ = fs.Parse(os.Args[2:])
		value, err := decimal.NewFromString(*amount)
		if err != nil || !value.IsPositive() {
			log.Fatal("-amount must be a positive decimal", zap.String("amount", *amount))
		}
		checkout := payment.NewCheckout(p, value, *description)
		if !checkout.Open(ctx) {
			log.Fatal(checkout.Err())
		}
		log.Info("paying", zap.String("amount", payment.FormatUSDC(value)), zap.String("to", treasury.Hex()))
		if err := checkout.Pay(ctx); err != nil {
			log.Fatal("checkout", zap.Error(err))
		}
		if checkout.State() != payment.StateSuccess {
			log.Fatal(checkout.Err(), zap.String("state", string(checkout.State())), zap.String("tx_hash", checkout.TxHash()))
		}
		fmt.Println(checkout.TxHash())
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: campuspay balance | campuspay pay -amount <usdc> [-description <text>]")
	os.Exit(2)
}
