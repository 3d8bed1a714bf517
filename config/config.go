package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Pinata     PinataConfig
	Redis      RedisConfig
	Chain      ChainConfig
	Turnkey    TurnkeyConfig
	Payment    PaymentConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    float64 // requests per second per client IP
	RateBurst    int
}

type LogConfig struct {
	Level string
}

type DatabaseConfig struct {
	Driver          string // postgres | mysql
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
	NonceTTL     time.Duration
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type PinataConfig struct {
	JWT        string
	APIURL     string
	GatewayURL string
}

// RedisConfig is optional; an empty Addr disables the IPFS JSON cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type ChainConfig struct {
	RPCURL          string // empty: signed transfers are recorded but not broadcast
	ChainID         int64
	USDCAddress     string
	TreasuryAddress string
}

// TurnkeyConfig holds the custodial signer API key. Without an organization the
// development stub signer is used.
type TurnkeyConfig struct {
	BaseURL        string
	OrganizationID string
	APIPublicKey   string
	APIPrivateKey  string
}

type PaymentConfig struct {
	RequireConfirmation bool
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8099"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  getenvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getenvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RateLimit:    getenvFloat("RATE_LIMIT_RPS", 2),
			RateBurst:    getenvInt("RATE_LIMIT_BURST", 100),
		},
		Log: LogConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getenv("DB_DRIVER", "postgres")),
			DSN:             getenv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=campusconnect port=5432 sslmode=disable"),
			MaxIdleConns:    getenvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getenvInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getenvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getenvDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
			Issuer:       getenv("JWT_ISSUER", "campusconnect"),
			NonceTTL:     getenvDuration("AUTH_NONCE_TTL", 5*time.Minute),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getenv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getenv("CLOUDINARY_API_KEY", ""),
			APISecret: getenv("CLOUDINARY_API_SECRET", ""),
		},
		Pinata: PinataConfig{
			JWT:        getenv("PINATA_JWT", ""),
			APIURL:     getenv("PINATA_API_URL", "https://api.pinata.cloud"),
			GatewayURL: getenv("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs"),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			CacheTTL: getenvDuration("IPFS_CACHE_TTL", 24*time.Hour),
		},
		Chain: ChainConfig{
			RPCURL:          getenv("CHAIN_RPC_URL", ""),
			ChainID:         int64(getenvInt("CHAIN_ID", 8453)),
			USDCAddress:     getenv("USDC_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			TreasuryAddress: getenv("CAMPUS_CONNECT_TREASURY_ADDRESS", ""),
		},
		Turnkey: TurnkeyConfig{
			BaseURL:        getenv("TURNKEY_API_BASE_URL", "https://api.turnkey.com"),
			OrganizationID: getenv("TURNKEY_ORGANIZATION_ID", ""),
			APIPublicKey:   getenv("TURNKEY_API_PUBLIC_KEY", ""),
			APIPrivateKey:  getenv("TURNKEY_API_PRIVATE_KEY", ""),
		},
		Payment: PaymentConfig{
			RequireConfirmation: getenvBool("PAYMENT_REQUIRE_CONFIRMATION", false),
			ConfirmationTimeout: getenvDuration("PAYMENT_CONFIRMATION_TIMEOUT", 2*time.Minute),
			PollInterval:        getenvDuration("PAYMENT_POLL_INTERVAL", 2*time.Second),
		},
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getenv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getenv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getenv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getenv(key, "")); err == nil {
		return v
	}
	return fallback
}
