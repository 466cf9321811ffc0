package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. It is loaded once at
// startup and injected into every component's constructor; nothing reads the
// environment ad hoc after Load returns.
type Config struct {
	// HTTP
	Port string

	// Persistence (alert/notification row store)
	DatabasePath string

	// Blockchain
	RPCURL                  string
	ChainID                 int64
	PositionRegistryAddress string
	SettlementAddress       string
	CollateralTokenAddress  string

	// Oracle price feeds, keyed by asset symbol (e.g. "ETH" -> feed address).
	OracleFeeds map[string]string

	// Market-maker signing key (hex, no 0x prefix required). Secret: never
	// logged, never returned to clients.
	MakerPrivateKey string

	// Auth
	JWTSecret string
	// API credentials accepted by the token endpoint. The key doubles as the
	// user identity for alert ownership.
	APIKey    string
	APISecret string
	// Shared secret for internal/scheduled triggers. Empty disables
	// enforcement (local/dev only).
	CronSecret string

	// Settlement keeper
	KeeperBatchSize   int
	KeeperScanLimit   uint64
	KeeperCronSpec    string
	MonitorCronSpec   string
	SchedulerEnabled  bool

	// Explanation service (LLM-backed, optional)
	ExplainAPIURL string
	ExplainAPIKey string
	ExplainModel  string
}

// Load reads configuration from environment variables, loading a .env file
// first if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		DatabasePath:            getEnv("DATABASE_PATH", "nawasena.db"),
		RPCURL:                  getEnv("RPC_URL", ""),
		ChainID:                 int64(getEnvInt("CHAIN_ID", 8453)),
		PositionRegistryAddress: getEnv("POSITION_REGISTRY_ADDRESS", ""),
		SettlementAddress:       getEnv("OPTION_SETTLEMENT_ADDRESS", ""),
		CollateralTokenAddress:  getEnv("COLLATERAL_TOKEN_ADDRESS", ""),
		OracleFeeds:             parseFeeds(getEnv("ORACLE_FEEDS", "")),
		MakerPrivateKey:         getEnv("MAKER_PRIVATE_KEY", ""),
		JWTSecret:               getEnv("JWT_SECRET", "nawasena-secret-key"),
		APIKey:                  getEnv("API_KEY", "nawasena-api-key"),
		APISecret:               getEnv("API_SECRET", "nawasena-api-secret"),
		CronSecret:              getEnv("CRON_SECRET", ""),
		KeeperBatchSize:         getEnvInt("KEEPER_BATCH_SIZE", 10),
		KeeperScanLimit:         uint64(getEnvInt("KEEPER_SCAN_LIMIT", 1000)),
		KeeperCronSpec:          getEnv("KEEPER_CRON", "*/5 * * * *"),
		MonitorCronSpec:         getEnv("MONITOR_CRON", "*/5 * * * *"),
		SchedulerEnabled:        getEnvBool("SCHEDULER_ENABLED", true),
		ExplainAPIURL:           getEnv("EXPLAIN_API_URL", ""),
		ExplainAPIKey:           getEnv("EXPLAIN_API_KEY", ""),
		ExplainModel:            getEnv("EXPLAIN_MODEL", "gpt-4o-mini"),
	}

	if cfg.KeeperBatchSize <= 0 {
		return nil, fmt.Errorf("KEEPER_BATCH_SIZE must be positive, got %d", cfg.KeeperBatchSize)
	}

	return cfg, nil
}

// parseFeeds parses "ETH=0xabc...,BTC=0xdef..." into a symbol -> address map.
func parseFeeds(raw string) map[string]string {
	feeds := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(parts[0]))
		addr := strings.TrimSpace(parts[1])
		if symbol != "" && addr != "" {
			feeds[symbol] = addr
		}
	}
	return feeds
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer from an env var; if empty or invalid, returns defaultValue
func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return defaultValue
}

// getEnvBool returns true if the env var is set to "1", "true", "yes" (case-insensitive)
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}
