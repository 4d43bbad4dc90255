package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	LedgerDBURL string
	LogLevel    string

	AnchorBatchSize  int
	AnchorIntervalMS int

	NotaryEnabled   bool
	NotaryURL       string
	NotaryToken     string
	NotaryTimeoutS  int
	NotaryRetries   int
	NotaryBackoffMS int

	SigningPrivateKeyBase64  string
	SigningPrivateKeySeedHex string
	SignerKID                string
	ReceiptSchemaVersion     string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int
	RateLimitFailClosed    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                 addr,
		LedgerDBURL:              os.Getenv("LEDGER_DB_URL"),
		LogLevel:                 envDefault("LOG_LEVEL", "info"),
		AnchorBatchSize:          envIntDefault("ANCHOR_BATCH_SIZE", 64),
		AnchorIntervalMS:         envIntDefault("ANCHOR_INTERVAL_MS", 0),
		NotaryEnabled:            envBoolDefault("NOTARY_ENABLED", true),
		NotaryURL:                os.Getenv("NOTARY_URL"),
		NotaryToken:              os.Getenv("NOTARY_TOKEN"),
		NotaryTimeoutS:           envIntDefault("NOTARY_TIMEOUT_S", 5),
		NotaryRetries:            envIntDefault("NOTARY_RETRIES", 5),
		NotaryBackoffMS:          envIntDefault("NOTARY_BACKOFF_MS", 250),
		SigningPrivateKeyBase64:  os.Getenv("SIGNING_PRIVATE_KEY_BASE64"),
		SigningPrivateKeySeedHex: os.Getenv("SIGNING_PRIVATE_KEY_SEED_HEX"),
		SignerKID:                envDefault("SIGNER_KID", "ledgerd-dev"),
		ReceiptSchemaVersion:     envDefault("RECEIPT_SCHEMA_VERSION", "0.1"),
		RateLimitRequests:        envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:   envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:         envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RateLimitFailClosed:      envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) NotaryTimeout() time.Duration {
	if c.NotaryTimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.NotaryTimeoutS) * time.Second
}

func (c Config) NotaryBackoff() time.Duration {
	if c.NotaryBackoffMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.NotaryBackoffMS) * time.Millisecond
}

func (c Config) AnchorInterval() time.Duration {
	if c.AnchorIntervalMS <= 0 {
		return 0
	}
	return time.Duration(c.AnchorIntervalMS) * time.Millisecond
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
