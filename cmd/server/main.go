package main

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusconnect/config"
	"campusconnect/internal/auth"
	"campusconnect/internal/database"
	"campusconnect/internal/domain"
	"campusconnect/internal/logger"
	"campusconnect/internal/metrics"
	"campusconnect/internal/middleware"
	"campusconnect/internal/router"
	"campusconnect/internal/service"
	"campusconnect/internal/ws"
	"campusconnect/pkg/cloudinary"
	"campusconnect/pkg/custody"
	"campusconnect/pkg/evm"
	"campusconnect/pkg/pinata"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.Log.Level, cfg.Server.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
	if err != nil {
		log.Fatal("cloudinary", zap.Error(err))
	}

	var nonces auth.NonceStore = auth.NewMemoryNonceStore(cfg.JWT.NonceTTL)
	pinOpts := []pinata.Option{pinata.WithLogger(log.Named("pinata"))}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using in-memory nonces and no IPFS cache", zap.Error(err))
		} else {
			nonces = auth.NewRedisNonceStore(rdb, cfg.JWT.NonceTTL)
			pinOpts = append(pinOpts, pinata.WithCache(pinata.NewRedisCache(rdb, cfg.Redis.CacheTTL)))
		}
	}
	pin := pinata.New(cfg.Pinata.JWT, cfg.Pinata.APIURL, cfg.Pinata.GatewayURL, pinOpts...)
	if cfg.Pinata.JWT == "" {
		log.Warn("PINATA_JWT not set, resource uploads will fail")
	} else {
		authCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if !pin.TestAuthentication(authCtx) {
			log.Warn("pinata authentication failed, check PINATA_JWT")
		}
		cancel()
	}

	chain, closeChain, err := buildChain(cfg, log)
	if err != nil {
		log.Fatal("chain", zap.Error(err))
	}
	defer closeChain()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiter := middleware.NewIPRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	stopSweeper := make(chan struct{})
	go limiter.RunSweeper(time.Minute, stopSweeper)
	defer close(stopSweeper)

	engine := router.Setup(cfg, router.Deps{
		DB:       db,
		Cloud:    cloud,
		Pinner:   pin,
		Hub:      ws.NewHub(),
		Nonces:   nonces,
		Chain:    chain,
		Metrics:  metrics.New(registry),
		Gatherer: registry,
		Limiter:  limiter,
		Log:      log,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

// buildChain connects to the RPC endpoint when one is configured and picks the
// Turnkey signer when an organization is set, the in-memory stub otherwise.
func buildChain(cfg *config.Config, log *zap.Logger) (service.PaymentChain, func(), error) {
	chain := service.PaymentChain{
		ChainID:             big.NewInt(cfg.Chain.ChainID),
		RequireConfirmation: cfg.Payment.RequireConfirmation,
		ConfirmationTimeout: cfg.Payment.ConfirmationTimeout,
		PollInterval:        cfg.Payment.PollInterval,
	}
	closeFn := func() {}

	usdc, err := evm.ParseAddress(cfg.Chain.USDCAddress)
	if err != nil {
		return chain, closeFn, err
	}
	if cfg.Chain.TreasuryAddress == "" {
		log.Warn("CAMPUS_CONNECT_TREASURY_ADDRESS not set, payments go to the zero address")
	} else if chain.Treasury, err = evm.ParseAddress(cfg.Chain.TreasuryAddress); err != nil {
		return chain, closeFn, err
	}

	if cfg.Chain.RPCURL != "" {
		client, err := ethclient.Dial(cfg.Chain.RPCURL)
		if err != nil {
			return chain, closeFn, err
		}
		chain.Backend = client
		chain.Token = evm.NewToken(client, usdc, domain.USDCDecimals)
		closeFn = client.Close
	} else {
		log.Warn("CHAIN_RPC_URL not set, payments are signed but not broadcast")
		chain.Token = evm.NewToken(nil, usdc, domain.USDCDecimals)
	}

	if cfg.Turnkey.OrganizationID != "" {
		tk, err := custody.NewTurnkeyClient(cfg.Turnkey.BaseURL, cfg.Turnkey.OrganizationID, cfg.Turnkey.APIPublicKey, cfg.Turnkey.APIPrivateKey)
		if err != nil {
			return chain, closeFn, err
		}
		chain.Signer = tk
	} else {
		log.Warn("TURNKEY_ORGANIZATION_ID not set, using in-memory development signer")
		chain.Signer = custody.NewStubSigner()
	}
	return chain, closeFn, nil
}
