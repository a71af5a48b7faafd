package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NodeHTTP is the HTTP JSON-RPC endpoint of the target EVM node.
	NodeHTTP string
	// NodeWS is the WebSocket JSON-RPC endpoint used for log subscriptions.
	// Optional; when empty the event watcher falls back to polling.
	NodeWS string

	// ChainID is the chain ID of the target network. Writes are refused when
	// the connected node reports a different chain.
	ChainID uint64

	// LenderAddress is the BorrowFI lending contract.
	LenderAddress common.Address
	// CLTTokenAddress is the collateral token (CLT) contract.
	CLTTokenAddress common.Address
	// BFITokenAddress is the loan token (BFI) contract.
	BFITokenAddress common.Address

	// SignerKeyHex is the hex-encoded private key used for signing transactions.
	SignerKeyHex string

	// DefaultGasLimit is the fallback gas limit if estimation fails.
	DefaultGasLimit uint64
	// GasAdjustment is the multiplier for estimated gas to ensure inclusion.
	GasAdjustment float64

	// ConfirmTimeout bounds how long a confirmation wait may block before the
	// action is failed. There is no way to retract a submitted transaction;
	// expiry only stops the wait.
	ConfirmTimeout time.Duration

	// ConfirmPollInterval is how often the receipt of a pending transaction
	// is polled for.
	ConfirmPollInterval time.Duration

	// DBHost enables the action journal when set. An empty value disables
	// persistence entirely; the client works without it.
	DBHost     string
	DBPort     uint64
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables without a documented default are required.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	NodeHTTP, err = getEnv("NODE_HTTP")
	if err != nil {
		return err
	}

	// Optional: log subscriptions degrade to polling without it.
	NodeWS = os.Getenv("NODE_WS")

	ChainID, err = getEnvAsUint64("CHAIN_ID")
	if err != nil {
		return err
	}

	LenderAddress, err = getEnvAsAddress("LENDER_ADDRESS")
	if err != nil {
		return err
	}

	CLTTokenAddress, err = getEnvAsAddress("CLT_TOKEN_ADDRESS")
	if err != nil {
		return err
	}

	BFITokenAddress, err = getEnvAsAddress("BFI_TOKEN_ADDRESS")
	if err != nil {
		return err
	}

	SignerKeyHex, err = getEnv("SIGNER_KEY")
	if err != nil {
		return err
	}

	DefaultGasLimit, err = getEnvAsUint64("GAS_DEFAULT_LIMIT")
	if err != nil {
		return err
	}

	GasAdjustment, err = getEnvAsFloat64("GAS_ADJUSTMENT")
	if err != nil {
		return err
	}

	ConfirmTimeout = getEnvAsDuration("CONFIRM_TIMEOUT", 3*time.Minute)
	ConfirmPollInterval = getEnvAsDuration("CONFIRM_POLL_INTERVAL", 4*time.Second)

	DBHost = os.Getenv("DB_HOST")
	if DBHost != "" {
		DBPort = getEnvAsUint64WithDefault("DB_PORT", 5432)
		DBUser, err = getEnv("DB_USER")
		if err != nil {
			return err
		}
		DBPassword, err = getEnv("DB_PASSWORD")
		if err != nil {
			return err
		}
		DBName, err = getEnv("DB_NAME")
		if err != nil {
			return err
		}
		DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")
	}

	log.Debug().
		Uint64("ChainID", ChainID).
		Str("Lender", LenderAddress.Hex()).
		Str("NodeHTTP", NodeHTTP).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsAddress retrieves an environment variable as an EVM address. Returns error if not set or invalid.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a valid hex address, got: " + valueStr)
	}
	return common.HexToAddress(valueStr), nil
}

// getEnvWithDefault retrieves a string environment variable with a default.
func getEnvWithDefault(key, def string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return def
}

// getEnvAsUint64WithDefault retrieves a uint64 environment variable with a default.
func getEnvAsUint64WithDefault(key string, def uint64) uint64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return def
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid uint64, using default")
		return def
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration with a default.
func getEnvAsDuration(key string, def time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return def
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid duration, using default")
		return def
	}
	return value
}
